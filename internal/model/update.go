package model

import (
	"regexp"
	"strings"
	"time"
)

const (
	UpdatePending  = "pending"
	UpdateApproved = "approved"
	UpdateRejected = "rejected"
)

var UpdateStatuses = []string{UpdatePending, UpdateApproved, UpdateRejected}

var referenceLinkRe = regexp.MustCompile(`https?://(www\.)?[-a-zA-Z0-9@:%._\+~#=]{1,256}\.[a-zA-Z0-9()]{1,6}\b([-a-zA-Z0-9()@:%_\+.~#?&/=]*)`)

// MissionUpdate 是用户提交、经管理员审核的任务动态。
type MissionUpdate struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Title         string    `gorm:"type:varchar(255);not null" json:"title"`
	Content       string    `gorm:"type:text;not null" json:"content"`
	ReferenceLink string    `gorm:"type:varchar(512);not null" json:"referenceLink"`
	Status        string    `gorm:"type:varchar(16);index;default:pending" json:"status"`
	MissionID     uint      `gorm:"index;not null" json:"missionId"`
	Mission       *Mission  `gorm:"foreignKey:MissionID" json:"mission,omitempty"`
	AuthorID      uint      `gorm:"index;not null" json:"authorId"`
	Author        *UserRef  `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	Likes         []uint    `gorm:"-" json:"likes"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Normalize trims user supplied text.
func (u *MissionUpdate) Normalize() {
	u.Title = strings.TrimSpace(u.Title)
	u.ReferenceLink = strings.TrimSpace(u.ReferenceLink)
}

// Validate 校验标题、内容与参考链接。
func (u *MissionUpdate) Validate() error {
	if u.Title == "" {
		return invalidf("Please add a title")
	}
	if strings.TrimSpace(u.Content) == "" {
		return invalidf("Please add content")
	}
	if u.ReferenceLink == "" {
		return invalidf("Please provide an official reference link")
	}
	if !referenceLinkRe.MatchString(u.ReferenceLink) {
		return invalidf("Please use a valid URL with HTTP or HTTPS")
	}
	if u.Status != "" && !oneOf(u.Status, UpdateStatuses) {
		return invalidf("status must be one of %v", UpdateStatuses)
	}
	return nil
}

// Editable reports whether the author may still change or delete the update.
func (u *MissionUpdate) Editable() bool {
	return u.Status == "" || u.Status == UpdatePending
}

// ModerationTarget reports whether status is a valid admin decision.
func ModerationTarget(status string) bool {
	return status == UpdateApproved || status == UpdateRejected
}
