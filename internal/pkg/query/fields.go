package query

// Kind 决定过滤值如何解析以及允许哪些操作符。
type Kind int

const (
	String Kind = iota
	Number
	Date
	Bool
	List // JSON 编码的字符串数组列，按成员匹配
)

// Field 是允许过滤/排序的任务字段：请求中的名称映射到数据库列。
type Field struct {
	Name   string
	Column string
	Kind   Kind
}

var missionFields = []Field{
	{"id", "id", Number},
	{"missionId", "mission_id", String},
	{"missionName", "mission_name", String},
	{"slug", "slug", String},
	{"missionType", "mission_type", String},
	{"category", "category", List},
	{"missionStatus", "mission_status", String},
	{"destination", "destination", String},
	{"agency.name", "agency_name", String},
	{"agency.country", "agency_country", String},
	{"agency.organizationType", "agency_organization_type", String},
	{"launch.launchDate", "launch_date", Date},
	{"launch.launchVehicle", "launch_vehicle", String},
	{"launch.launchSite", "launch_site", String},
	{"launch.launchProvider", "launch_provider", String},
	{"missionTimeline.startDate", "timeline_start_date", Date},
	{"missionTimeline.endDate", "timeline_end_date", Date},
	{"spacecraft.name", "spacecraft_name", String},
	{"spacecraft.type", "spacecraft_type", String},
	{"spacecraft.manufacturer", "spacecraft_manufacturer", String},
	{"spacecraft.massKg", "spacecraft_mass_kg", Number},
	{"spacecraft.powerSource", "spacecraft_power_source", String},
	{"crew.isCrewed", "crew_is_crewed", Bool},
	{"orbitDetails.orbitType", "orbit_type", String},
	{"orbitDetails.apoapsisKm", "orbit_apoapsis_km", Number},
	{"orbitDetails.periapsisKm", "orbit_periapsis_km", Number},
	{"orbitDetails.inclinationDeg", "orbit_inclination_deg", Number},
	{"budget.amount", "budget_amount", Number},
	{"budget.currency", "budget_currency", String},
	{"outcome.success", "outcome_success", Bool},
	{"createdAt", "created_at", Date},
	{"updatedAt", "updated_at", Date},
}

var fieldIndex = func() map[string]Field {
	idx := make(map[string]Field, len(missionFields))
	for _, f := range missionFields {
		idx[f.Name] = f
	}
	return idx
}()

// aliases 是便捷过滤参数到真实字段的映射。
var aliases = map[string]string{
	"status": "missionStatus",
	"owner":  "agency.name",
}

// selectable 是 select 投影允许的顶层 JSON 字段。
var selectable = map[string]bool{
	"id": true, "missionId": true, "missionName": true, "slug": true,
	"missionType": true, "category": true, "agency": true, "launch": true,
	"missionStatus": true, "missionTimeline": true, "destination": true,
	"spacecraft": true, "crew": true, "objectives": true, "payloads": true,
	"orbitDetails": true, "budget": true, "outcome": true, "media": true,
	"createdByUserId": true, "createdAt": true, "updatedAt": true,
}

const (
	launchDateField = "launch.launchDate"
	nameColumn      = "mission_name"
	objectivesCol   = "objectives_text"
)

// LookupField returns the allow-listed field for a request name.
func LookupField(name string) (Field, bool) {
	f, ok := fieldIndex[name]
	return f, ok
}
