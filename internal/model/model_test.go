package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMission() Mission {
	return Mission{
		MissionName:   "Perseverance",
		MissionStatus: "ongoing",
		Destination:   "Mars",
		Agency:        Agency{Name: "NASA", OrganizationType: "government"},
		Spacecraft:    Spacecraft{Name: "Perseverance", Type: "rover", PowerSource: "nuclear"},
		Payloads:      []Payload{{Name: "SHERLOC", Type: "instrument"}},
		OrbitDetails:  OrbitDetails{OrbitType: "interplanetary"},
	}
}

func TestMissionValidate(t *testing.T) {
	m := validMission()
	require.NoError(t, m.Validate())

	cases := map[string]func(m *Mission){
		"missing name":        func(m *Mission) { m.MissionName = "" },
		"missing status":      func(m *Mission) { m.MissionStatus = "" },
		"bad status":          func(m *Mission) { m.MissionStatus = "paused" },
		"missing destination": func(m *Mission) { m.Destination = "" },
		"bad destination":     func(m *Mission) { m.Destination = "Pluto" },
		"agency without name": func(m *Mission) { m.Agency.Name = "" },
		"bad org type":        func(m *Mission) { m.Agency.OrganizationType = "corporate" },
		"bad craft type":      func(m *Mission) { m.Spacecraft.Type = "balloon" },
		"bad power source":    func(m *Mission) { m.Spacecraft.PowerSource = "wind" },
		"bad payload type":    func(m *Mission) { m.Payloads[0].Type = "crew" },
		"bad orbit type":      func(m *Mission) { m.OrbitDetails.OrbitType = "polar" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			m := validMission()
			m.Payloads = []Payload{{Name: "SHERLOC", Type: "instrument"}}
			mutate(&m)
			err := m.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}

func TestMissionValidate_OptionalSubRecords(t *testing.T) {
	m := Mission{MissionName: "Sputnik 1", MissionStatus: "completed", Destination: "Low Earth Orbit (LEO)"}
	assert.NoError(t, m.Validate())
}

func TestMissionNormalize(t *testing.T) {
	m := Mission{MissionName: "  Luna 9 ", Agency: Agency{Name: " OKB-1 "}}
	m.Normalize()
	assert.Equal(t, "Luna 9", m.MissionName)
	assert.Equal(t, "OKB-1", m.Agency.Name)
}

func TestMissionBeforeSave_PlainObjectivesText(t *testing.T) {
	m := validMission()
	m.Objectives = []string{"Sample R&D <core>", `Study "quoted" dust`}
	require.NoError(t, m.BeforeSave(nil))
	assert.Equal(t, "sample r&d <core>\nstudy \"quoted\" dust", m.ObjectivesText)
	assert.Contains(t, m.ObjectivesText, "r&d")
	assert.NotContains(t, m.ObjectivesText, `\u0026`)
}

func TestMissionUpdateValidate(t *testing.T) {
	u := MissionUpdate{Title: "Landing confirmed", Content: "Touchdown.", ReferenceLink: "https://www.nasa.gov/news"}
	require.NoError(t, u.Validate())

	bad := []MissionUpdate{
		{Content: "x", ReferenceLink: "https://nasa.gov"},
		{Title: "x", ReferenceLink: "https://nasa.gov"},
		{Title: "x", Content: "x"},
		{Title: "x", Content: "x", ReferenceLink: "ftp://nasa.gov/file"},
		{Title: "x", Content: "x", ReferenceLink: "https://nasa.gov", Status: "draft"},
	}
	for i, b := range bad {
		err := b.Validate()
		assert.ErrorIs(t, err, ErrValidation, "case %d", i)
	}
}

func TestMissionUpdateEditable(t *testing.T) {
	assert.True(t, (&MissionUpdate{Status: UpdatePending}).Editable())
	assert.False(t, (&MissionUpdate{Status: UpdateApproved}).Editable())
	assert.False(t, (&MissionUpdate{Status: UpdateRejected}).Editable())
}

func TestModerationTarget(t *testing.T) {
	assert.True(t, ModerationTarget("approved"))
	assert.True(t, ModerationTarget("rejected"))
	assert.False(t, ModerationTarget("pending"))
	assert.False(t, ModerationTarget(""))
}

func TestCommentValidate(t *testing.T) {
	c := Comment{Content: "   "}
	c.Normalize()
	assert.ErrorIs(t, c.Validate(), ErrValidation)

	c = Comment{Content: " go for launch "}
	c.Normalize()
	assert.NoError(t, c.Validate())
	assert.Equal(t, "go for launch", c.Content)
}

func TestUsernameAndEmail(t *testing.T) {
	assert.True(t, ValidUsername("apollo123"))
	assert.False(t, ValidUsername("Apollo"))
	assert.False(t, ValidUsername("apollo_11"))
	assert.False(t, ValidUsername(""))
	assert.Equal(t, "ada@example.com", NormalizeEmail("  Ada@Example.COM "))
}
