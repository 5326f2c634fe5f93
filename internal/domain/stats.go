package domain

type DistributionSlice struct {
	ActiveDevices int `json:"active_devices"`
	UserCount     int `json:"user_count"`
}

type ResourceCount struct {
	Resource string `json:"resource"`
	Count    int    `json:"count"`
}
