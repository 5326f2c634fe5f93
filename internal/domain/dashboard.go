package domain

import "time"

// EnrollmentView — отчет по enrollment пользователей AD.
type EnrollmentView struct {
	TotalUsers       int                 `json:"total_users"`
	ActiveUsers      int                 `json:"active_users"` // хотя бы одно активное устройство
	ActivePercent    float64             `json:"active_percent"`
	RemainingPercent float64             `json:"remaining_percent"`
	Enrolled         []EnrolledUser      `json:"enrolled"`
	NotEnrolled      []Person            `json:"not_enrolled"`
	MultiDevice      []EnrolledUser      `json:"multi_device"`
	Distribution     []DistributionSlice `json:"distribution"` // пользователей на число активных устройств
}

type Person struct {
	Usuario string `json:"usuario"`
	Correo  string `json:"correo"`
}

type EnrolledUser struct {
	Person
	ActiveDevices  int `json:"active_devices"`
	ExpiredDevices int `json:"expired_devices"`
	RevokedDevices int `json:"revoked_devices"`
}

// TunnelView — активные machine tunnel подключения.
type TunnelView struct {
	Total int         `json:"total"` // total из ответа API, может не совпадать с len(Rows)
	Rows  []TunnelRow `json:"rows"`
}

type TunnelRow struct {
	DeviceName    string  `json:"device_name"`
	PublicIP      string  `json:"public_ip"`
	AssignedIP    string  `json:"assigned_ip"`
	LoginTime     string  `json:"login_time"`  // локальное время дашборда
	ActiveTime    string  `json:"active_time"` // "1d 2h 05m"
	ActiveMinutes float64 `json:"active_minutes"`
	Usuario       string  `json:"usuario"`
}

// ActivityView — доступ к приватным приложениям через ZTNA с начала рабочего дня.
type ActivityView struct {
	Window     Window          `json:"window"`
	EventCount int             `json:"event_count"`
	Counts     []ResourceCount `json:"counts"`
	Inactive   []string        `json:"inactive"` // приватные ресурсы без обращений
}

// Window — интервал, за который собрана активность.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
