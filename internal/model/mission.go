package model

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	MissionStatuses   = []string{"planned", "ongoing", "completed", "failed", "cancelled"}
	OrganizationTypes = []string{"government", "private", "international"}
	SpacecraftTypes   = []string{"satellite", "rover", "lander", "probe", "crewed"}
	PowerSources      = []string{"solar", "nuclear", "battery"}
	PayloadTypes      = []string{"instrument", "satellite", "cargo"}
	OrbitTypes        = []string{"LEO", "MEO", "GEO", "HEO", "interplanetary"}

	// Destinations 是任务目的地的封闭枚举。
	Destinations = []string{
		"Suborbital",
		"Low Earth Orbit (LEO)",
		"Medium Earth Orbit (MEO)",
		"Geostationary Orbit (GEO)",
		"Highly Elliptical Orbit (HEO)",
		"Earth–Moon System",
		"Moon",
		"Cislunar Space",
		"Lagrange Points (L1–L5)",
		"Mars",
		"Venus",
		"Mercury",
		"Jupiter",
		"Saturn",
		"Uranus",
		"Neptune",
		"Asteroid",
		"Comet",
		"Interplanetary Space",
		"Heliosphere",
		"Deep Space",
		"Interstellar Space",
		"Space Station",
	}
)

// Mission 表示一条航天任务记录。
//
// 嵌套子记录以带前缀的列展开存储（agency_name、launch_date 等），
// 列名与查询构建器的字段白名单一一对应。
type Mission struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	MissionID       string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"missionId"`
	MissionName     string          `gorm:"type:varchar(255);not null" json:"missionName"`
	Slug            string          `gorm:"type:varchar(191);uniqueIndex;not null" json:"slug"`
	MissionType     string          `gorm:"type:varchar(64)" json:"missionType,omitempty"`
	Category        []string        `gorm:"type:text;serializer:json" json:"category"`
	Agency          Agency          `gorm:"embedded;embeddedPrefix:agency_" json:"agency"`
	Launch          Launch          `gorm:"embedded;embeddedPrefix:launch_" json:"launch"`
	MissionStatus   string          `gorm:"type:varchar(16);index;not null" json:"missionStatus"`
	MissionTimeline MissionTimeline `gorm:"embedded;embeddedPrefix:timeline_" json:"missionTimeline"`
	Destination     string          `gorm:"type:varchar(64);index;not null" json:"destination"`
	Spacecraft      Spacecraft      `gorm:"embedded;embeddedPrefix:spacecraft_" json:"spacecraft"`
	Crew            Crew            `gorm:"embedded;embeddedPrefix:crew_" json:"crew"`
	Objectives      []string        `gorm:"type:text;serializer:json" json:"objectives"`
	ObjectivesText  string          `gorm:"type:text" json:"-"`
	Payloads        []Payload       `gorm:"type:text;serializer:json" json:"payloads"`
	OrbitDetails    OrbitDetails    `gorm:"embedded;embeddedPrefix:orbit_" json:"orbitDetails"`
	Budget          Budget          `gorm:"embedded;embeddedPrefix:budget_" json:"budget"`
	Outcome         Outcome         `gorm:"embedded;embeddedPrefix:outcome_" json:"outcome"`
	Media           Media           `gorm:"embedded;embeddedPrefix:media_" json:"media"`
	CreatedByUserID *uint           `gorm:"index" json:"createdByUserId,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

type Agency struct {
	Name             string `gorm:"type:varchar(128);index" json:"name,omitempty"`
	Country          string `gorm:"type:varchar(64)" json:"country,omitempty"`
	OrganizationType string `gorm:"type:varchar(16)" json:"organizationType,omitempty"`
}

type Launch struct {
	LaunchDate     *time.Time `gorm:"column:date;index" json:"launchDate,omitempty"`
	LaunchVehicle  string     `gorm:"column:vehicle;type:varchar(128)" json:"launchVehicle,omitempty"`
	LaunchSite     string     `gorm:"column:site;type:varchar(128)" json:"launchSite,omitempty"`
	LaunchProvider string     `gorm:"column:provider;type:varchar(128)" json:"launchProvider,omitempty"`
}

type MissionTimeline struct {
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
}

type Spacecraft struct {
	Name         string   `gorm:"type:varchar(128)" json:"name,omitempty"`
	Type         string   `gorm:"type:varchar(16)" json:"type,omitempty"`
	Manufacturer string   `gorm:"type:varchar(128)" json:"manufacturer,omitempty"`
	MassKg       *float64 `json:"massKg,omitempty"`
	PowerSource  string   `gorm:"type:varchar(16)" json:"powerSource,omitempty"`
}

type CrewMember struct {
	Name        string `json:"name,omitempty"`
	Role        string `json:"role,omitempty"`
	Nationality string `json:"nationality,omitempty"`
}

type Crew struct {
	IsCrewed bool         `gorm:"default:false" json:"isCrewed"`
	Members  []CrewMember `gorm:"type:text;serializer:json" json:"members"`
}

type Payload struct {
	Name    string `json:"name,omitempty"`
	Type    string `json:"type,omitempty"`
	Purpose string `json:"purpose,omitempty"`
}

type OrbitDetails struct {
	OrbitType      string   `gorm:"column:type;type:varchar(16)" json:"orbitType,omitempty"`
	ApoapsisKm     *float64 `json:"apoapsisKm,omitempty"`
	PeriapsisKm    *float64 `json:"periapsisKm,omitempty"`
	InclinationDeg *float64 `json:"inclinationDeg,omitempty"`
}

type Budget struct {
	Amount   *float64 `json:"amount,omitempty"`
	Currency string   `gorm:"type:varchar(8)" json:"currency,omitempty"`
}

type Outcome struct {
	Success *bool  `json:"success,omitempty"`
	Summary string `gorm:"type:text" json:"summary,omitempty"`
}

type Media struct {
	Images          []string `gorm:"type:text;serializer:json" json:"images"`
	Videos          []string `gorm:"type:text;serializer:json" json:"videos"`
	OfficialWebsite string   `gorm:"type:varchar(255)" json:"officialWebsite,omitempty"`
}

func (a Agency) empty() bool {
	return a == Agency{}
}

func (s Spacecraft) empty() bool {
	return s.Name == "" && s.Type == "" && s.Manufacturer == "" && s.MassKg == nil && s.PowerSource == ""
}

// BeforeSave 维护 objectives 的纯文本副本，搜索只匹配文本而非 JSON 编码。
func (m *Mission) BeforeSave(*gorm.DB) error {
	m.ObjectivesText = ObjectivesSearchText(m.Objectives)
	return nil
}

// ObjectivesSearchText joins objectives one per line, lowercased.
func ObjectivesSearchText(objectives []string) string {
	return strings.ToLower(strings.Join(objectives, "\n"))
}

// Normalize 清理写入前的字段（去除首尾空白）。
func (m *Mission) Normalize() {
	m.MissionName = strings.TrimSpace(m.MissionName)
	m.Agency.Name = strings.TrimSpace(m.Agency.Name)
	m.Spacecraft.Name = strings.TrimSpace(m.Spacecraft.Name)
}

// Validate 校验必填字段与枚举约束。
func (m *Mission) Validate() error {
	if m.MissionName == "" {
		return invalidf("missionName is required")
	}
	if m.MissionStatus == "" {
		return invalidf("missionStatus is required")
	}
	if err := checkEnum("missionStatus", m.MissionStatus, MissionStatuses); err != nil {
		return err
	}
	if m.Destination == "" {
		return invalidf("destination is required")
	}
	if err := checkEnum("destination", m.Destination, Destinations); err != nil {
		return err
	}
	if !m.Agency.empty() && m.Agency.Name == "" {
		return invalidf("agency.name is required")
	}
	if err := checkEnum("agency.organizationType", m.Agency.OrganizationType, OrganizationTypes); err != nil {
		return err
	}
	if !m.Spacecraft.empty() && m.Spacecraft.Name == "" {
		return invalidf("spacecraft.name is required")
	}
	if err := checkEnum("spacecraft.type", m.Spacecraft.Type, SpacecraftTypes); err != nil {
		return err
	}
	if err := checkEnum("spacecraft.powerSource", m.Spacecraft.PowerSource, PowerSources); err != nil {
		return err
	}
	for i, p := range m.Payloads {
		if err := checkEnum("payloads.type", p.Type, PayloadTypes); err != nil {
			return invalidf("payloads[%d]: type must be one of %v", i, PayloadTypes)
		}
	}
	if err := checkEnum("orbitDetails.orbitType", m.OrbitDetails.OrbitType, OrbitTypes); err != nil {
		return err
	}
	return nil
}
