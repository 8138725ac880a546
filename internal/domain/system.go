package domain

import (
	"time"
)

// SysConfig is one store-scoped setting, grouped by Type.
type SysConfig struct {
	ID        int64     `json:"id,string"   form:"id"`
	StoreID   string    `gorm:"index;size:64" json:"store_id" form:"store_id"`
	Sort      int       `json:"sort"  form:"sort"`
	Type      string    `gorm:"index" json:"type" form:"type"`
	Name      string    `gorm:"index" json:"name" form:"name"`
	Value     string    `json:"value" form:"value"`
	Remark    string    `json:"remark" form:"remark"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (SysConfig) TableName() string {
	return "sys_config"
}

// Staff roles
const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleStaff   = "staff"
)

// IsAdminRole reports whether the role may manage inventory, staff and store settings.
func IsAdminRole(role string) bool {
	return role == RoleOwner || role == RoleAdmin
}

// SysOpr is a staff account of a store.
type SysOpr struct {
	ID        int64     `json:"id,string" form:"id"`
	StoreID   string    `gorm:"index;size:64" json:"store_id" form:"store_id"`
	Realname  string    `json:"realname" form:"realname"`
	Mobile    string    `json:"mobile" form:"mobile"`
	Email     string    `gorm:"uniqueIndex;size:255" json:"email" form:"email"`
	Password  string    `json:"-" form:"password"`
	Role      string    `gorm:"size:32" json:"role" form:"role"`
	Status    string    `json:"status" form:"status"`
	Remark    string    `json:"remark" form:"remark"`
	LastLogin time.Time `json:"last_login" form:"last_login"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName Specify table name
func (SysOpr) TableName() string {
	return "sys_opr"
}

type SysOprLog struct {
	ID        int64     `json:"id,string"`
	StoreID   string    `gorm:"index;size:64" json:"store_id"`
	OprName   string    `json:"opr_name"`
	OprIp     string    `json:"opr_ip"`
	OptAction string    `json:"opt_action"`
	OptDesc   string    `json:"opt_desc"`
	OptTime   time.Time `gorm:"index" json:"opt_time"`
}

// TableName Specify table name
func (SysOprLog) TableName() string {
	return "sys_opr_log"
}
