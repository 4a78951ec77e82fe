package query

import (
	"encoding/json"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// likeEscaper 转义 LIKE 通配符，转义符为 '!'。
var likeEscaper = strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)

const likeEscape = " ESCAPE '!'"

// SQL 返回条件对应的 WHERE 片段和参数。列名来自白名单，不包含用户输入。
func (c Condition) SQL() (string, []any) {
	col := c.Field.Column
	if c.Field.Kind == List {
		parts := make([]string, 0, len(c.Values))
		args := make([]any, 0, len(c.Values))
		for _, v := range c.Values {
			parts = append(parts, col+" LIKE ?"+likeEscape)
			args = append(args, memberPattern(fmt.Sprint(v)))
		}
		if len(parts) == 1 {
			return parts[0], args
		}
		return "(" + strings.Join(parts, " OR ") + ")", args
	}

	switch c.Op {
	case Gt:
		return col + " > ?", c.Values[:1]
	case Gte:
		return col + " >= ?", c.Values[:1]
	case Lt:
		return col + " < ?", c.Values[:1]
	case Lte:
		return col + " <= ?", c.Values[:1]
	case In:
		return col + " IN ?", []any{c.Values}
	default:
		return col + " = ?", c.Values[:1]
	}
}

// SearchSQL returns the case-insensitive name-or-objectives match.
func SearchSQL(term string) (string, []any) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
	return fmt.Sprintf("(LOWER(%s) LIKE ?%s OR LOWER(%s) LIKE ?%s)", nameColumn, likeEscape, objectivesCol, likeEscape), []any{pattern, pattern}
}

// Where 应用过滤与搜索条件；数据查询和计数查询共用。
func (q Query) Where(db *gorm.DB) *gorm.DB {
	for _, c := range q.Conditions {
		sql, args := c.SQL()
		db = db.Where(sql, args...)
	}
	if q.Search != "" {
		sql, args := SearchSQL(q.Search)
		db = db.Where(sql, args...)
	}
	return db
}

// Order 应用排序，最后以主键兜底以保证分页稳定。
func (q Query) Order(db *gorm.DB) *gorm.DB {
	for _, k := range q.Sort {
		db = db.Order(clause.OrderByColumn{Column: clause.Column{Name: k.Field.Column}, Desc: k.Desc})
	}
	return db.Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}})
}

// Window applies offset/limit for the requested page.
func (q Query) Window(db *gorm.DB) *gorm.DB {
	return db.Offset(q.Offset()).Limit(q.Limit)
}

// memberPattern matches a JSON-encoded string inside a JSON array column.
func memberPattern(v string) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		encoded = []byte(`"` + v + `"`)
	}
	return "%" + likeEscaper.Replace(string(encoded)) + "%"
}
