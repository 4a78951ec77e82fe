// Package query turns mission list request parameters into a typed,
// allow-listed query and applies it to gorm.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid 表示请求参数无法转换为合法查询（未知字段、非法值或操作符）。
var ErrInvalid = errors.New("invalid query")

// Op 是过滤条件的比较操作符。
type Op string

const (
	Eq  Op = "eq"
	Gt  Op = "gt"
	Gte Op = "gte"
	Lt  Op = "lt"
	Lte Op = "lte"
	In  Op = "in"
)

var rangeOps = map[string]Op{"gt": Gt, "gte": Gte, "lt": Lt, "lte": Lte, "in": In}

// field[op] or field.op
var keyRe = regexp.MustCompile(`^(.+?)(?:\[([A-Za-z$]+)\]|\.(gt|gte|lt|lte|in))?$`)

// Condition is a single typed comparison against one column.
type Condition struct {
	Field  Field
	Op     Op
	Values []any
}

// SortKey orders results by one field.
type SortKey struct {
	Field Field
	Desc  bool
}

// Query 是解析完成的任务列表查询。
type Query struct {
	Conditions []Condition
	Search     string
	Sort       []SortKey
	Select     []string
	Page       int
	Limit      int
}

// Options 控制分页默认值。
type Options struct {
	DefaultLimit int
	MaxLimit     int
}

const (
	defaultLimit = 25
	maxLimit     = 100
)

func (o Options) withDefaults() Options {
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = defaultLimit
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = maxLimit
	}
	if o.DefaultLimit > o.MaxLimit {
		o.DefaultLimit = o.MaxLimit
	}
	return o
}

type slot struct {
	field string
	op    Op
}

// Parse 将查询字符串解析为 Query。
//
// 保留参数: select, sort, page, limit, search。
// 便捷参数 status/owner 映射为 missionStatus/agency.name，并覆盖同字段同操作符的通用条件，
// 因此最终条件中不会同时出现映射前后的两个键。
func Parse(values url.Values, opts Options) (Query, error) {
	opts = opts.withDefaults()
	q := Query{Page: 1, Limit: opts.DefaultLimit}
	page := int64(1)

	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	conds := make(map[slot]Condition)
	fromAlias := make(map[slot]bool)
	var order []slot
	sortSet := false

	for _, key := range keys {
		vals := nonEmpty(values[key])
		if len(vals) == 0 {
			continue
		}
		switch key {
		case "select":
			sel, err := parseSelect(strings.Join(vals, ","))
			if err != nil {
				return Query{}, err
			}
			q.Select = sel
			continue
		case "sort":
			sortKeys, err := parseSort(strings.Join(vals, ","))
			if err != nil {
				return Query{}, err
			}
			q.Sort = sortKeys
			sortSet = true
			continue
		case "page":
			p, err := strconv.ParseInt(strings.TrimSpace(vals[0]), 10, 64)
			if errors.Is(err, strconv.ErrRange) {
				return Query{}, fmt.Errorf("%w: page %q out of range", ErrInvalid, vals[0])
			}
			if err == nil && p > 1 {
				page = p
			}
			continue
		case "limit":
			q.Limit = positiveInt(vals[0], opts.DefaultLimit)
			if q.Limit > opts.MaxLimit {
				q.Limit = opts.MaxLimit
			}
			continue
		case "search":
			q.Search = strings.TrimSpace(vals[0])
			continue
		}

		name, op, err := splitKey(key)
		if err != nil {
			return Query{}, err
		}
		target, isAlias := aliases[name]
		if isAlias {
			name = target
		}
		field, ok := LookupField(name)
		if !ok {
			return Query{}, fmt.Errorf("%w: unsupported filter field %q", ErrInvalid, key)
		}
		cond, err := buildCondition(field, op, vals)
		if err != nil {
			return Query{}, err
		}

		s := slot{field: field.Name, op: cond.Op}
		if _, exists := conds[s]; exists {
			if fromAlias[s] && !isAlias {
				continue
			}
		} else {
			order = append(order, s)
		}
		conds[s] = cond
		fromAlias[s] = isAlias
	}

	for _, s := range order {
		q.Conditions = append(q.Conditions, conds[s])
	}
	if !sortSet || len(q.Sort) == 0 {
		q.Sort = []SortKey{{Field: fieldIndex[launchDateField], Desc: true}}
	}
	// page*limit 必须放得进 maxOffset，否则 Offset/Paginate 会溢出
	if page > int64(maxPage(q.Limit)) {
		return Query{}, fmt.Errorf("%w: page %d out of range for limit %d", ErrInvalid, page, q.Limit)
	}
	q.Page = int(page)
	return q, nil
}

// Offset 返回当前页跳过的记录数。
func (q Query) Offset() int {
	return (q.Page - 1) * q.Limit
}

// PageRef identifies a neighbouring page.
type PageRef struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Pagination 描述前后页；不存在时省略。
type Pagination struct {
	Next *PageRef `json:"next,omitempty"`
	Prev *PageRef `json:"prev,omitempty"`
}

// Paginate builds next/prev descriptors from the total match count.
func (q Query) Paginate(total int64) Pagination {
	var p Pagination
	if int64(q.Page)*int64(q.Limit) < total {
		p.Next = &PageRef{Page: q.Page + 1, Limit: q.Limit}
	}
	if q.Page > 1 {
		p.Prev = &PageRef{Page: q.Page - 1, Limit: q.Limit}
	}
	return p
}

// Project keeps only the selected top-level JSON fields of each item.
// "id" is always kept. With no selection the items are returned unchanged.
func Project[T any](items []T, fields []string) (any, error) {
	if len(fields) == 0 {
		return items, nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("marshal for projection: %w", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("unmarshal for projection: %w", err)
	}
	keep := map[string]bool{"id": true}
	for _, f := range fields {
		keep[f] = true
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		projected := make(map[string]any, len(keep))
		for k, v := range row {
			if keep[k] {
				projected[k] = v
			}
		}
		out = append(out, projected)
	}
	return out, nil
}

func splitKey(key string) (string, Op, error) {
	m := keyRe.FindStringSubmatch(key)
	if m == nil {
		return "", "", fmt.Errorf("%w: malformed filter %q", ErrInvalid, key)
	}
	name := m[1]
	opName := m[2]
	if opName == "" {
		opName = m[3]
	}
	if opName == "" {
		return name, Eq, nil
	}
	op, ok := rangeOps[strings.TrimPrefix(opName, "$")]
	if !ok {
		return "", "", fmt.Errorf("%w: unsupported operator %q", ErrInvalid, opName)
	}
	return name, op, nil
}

func buildCondition(field Field, op Op, raw []string) (Condition, error) {
	if op == Eq && len(raw) > 1 {
		op = In
	}
	if op == In {
		var parts []string
		for _, r := range raw {
			for _, p := range strings.Split(r, ",") {
				if p = strings.TrimSpace(p); p != "" {
					parts = append(parts, p)
				}
			}
		}
		raw = parts
		if len(raw) == 0 {
			return Condition{}, fmt.Errorf("%w: empty list for %q", ErrInvalid, field.Name)
		}
	} else {
		raw = raw[:1]
	}

	switch op {
	case Gt, Gte, Lt, Lte:
		if field.Kind == Bool || field.Kind == List {
			return Condition{}, fmt.Errorf("%w: operator %s not allowed on %q", ErrInvalid, op, field.Name)
		}
	}

	values := make([]any, 0, len(raw))
	for _, r := range raw {
		v, err := convert(field, r)
		if err != nil {
			return Condition{}, err
		}
		values = append(values, v)
	}
	return Condition{Field: field, Op: op, Values: values}, nil
}

func convert(field Field, raw string) (any, error) {
	switch field.Kind {
	case Number:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q expects a number, got %q", ErrInvalid, field.Name, raw)
		}
		return f, nil
	case Date:
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("%w: %q expects a date, got %q", ErrInvalid, field.Name, raw)
	case Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q expects a boolean, got %q", ErrInvalid, field.Name, raw)
		}
		return b, nil
	default:
		return raw, nil
	}
}

func parseSort(raw string) ([]SortKey, error) {
	var keys []SortKey
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		desc := strings.HasPrefix(tok, "-")
		name := strings.TrimLeft(tok, "-+")
		if strings.Contains(name, "launchDate") {
			name = launchDateField
		}
		field, ok := LookupField(name)
		if !ok {
			return nil, fmt.Errorf("%w: unsupported sort field %q", ErrInvalid, name)
		}
		keys = append(keys, SortKey{Field: field, Desc: desc})
	}
	return keys, nil
}

func parseSelect(raw string) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, tok := range strings.Split(raw, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		top := strings.SplitN(tok, ".", 2)[0]
		if !selectable[top] {
			return nil, fmt.Errorf("%w: unsupported select field %q", ErrInvalid, tok)
		}
		if !seen[top] {
			seen[top] = true
			out = append(out, top)
		}
	}
	return out, nil
}

// maxOffset bounds the number of skipped rows; it fits in int32 on every platform.
const maxOffset = 1<<31 - 1

func maxPage(limit int) int {
	return maxOffset/limit + 1
}

func positiveInt(raw string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v < 1 {
		return def
	}
	return v
}

func nonEmpty(vals []string) []string {
	out := vals[:0:0]
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}
