package secureaccess

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ApplicationTypePrivate — тип приложения ZTNA для частных ресурсов.
const ApplicationTypePrivate = "PRIVATE"

// Identity — запись каталога (пользователь AD) из отчета identities.
type Identity struct {
	ID    int64  `json:"id"`
	Label string `json:"label"` // "Имя Фамилия (user@corp)"
}

// FlexID принимает идентификатор и числом, и строкой: userSummaries отдает userId строкой.
type FlexID int64

func (f *FlexID) UnmarshalJSON(data []byte) error {
	s := string(bytes.Trim(data, `"`))
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*f = FlexID(v)
	return nil
}

// DeviceCertificateCounts — счетчики сертификатов устройств пользователя.
type DeviceCertificateCounts struct {
	Active  int `json:"active"`
	Expired int `json:"expired"`
	Revoked int `json:"revoked"`
}

// UserSummary — сводка ZTNA по пользователю. Есть сводка — пользователь enrolled.
type UserSummary struct {
	UserID                  FlexID                  `json:"userId"`
	DeviceCertificateCounts DeviceCertificateCounts `json:"deviceCertificateCounts"`
}

// VPNConnection — подключение Machine Tunnel.
type VPNConnection struct {
	DeviceName string `json:"deviceName"`
	PublicIP   string `json:"publicIp"`
	AssignedIP string `json:"assignedIp,omitempty"`
	LoginTime  string `json:"loginTime"` // "Sep 10 2024 02:15:33 PM UTC"
}

// PrivateResource — частный ресурс из политик.
type PrivateResource struct {
	Name string `json:"name"`
}

// Application — элемент allapplications события ZTNA.
type Application struct {
	Type  string `json:"type"`
	Label string `json:"label"`
}

// ZTNAEvent — событие активности ZTNA. Исходная запись API хранится целиком в Raw,
// чтобы снимки на диске повторяли ответ API байт в байт.
type ZTNAEvent struct {
	Timestamp       int64         `json:"timestamp"` // epoch ms
	AllApplications []Application `json:"allapplications"`
	Raw             json.RawMessage
}

func (e *ZTNAEvent) UnmarshalJSON(data []byte) error {
	var wire struct {
		Timestamp       json.Number       `json:"timestamp"`
		AllApplications []json.RawMessage `json:"allapplications"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	ts, err := parseTimestamp(wire.Timestamp)
	if err != nil {
		return err
	}

	apps := make([]Application, 0, len(wire.AllApplications))
	for _, raw := range wire.AllApplications {
		// В списке бывают не только объекты — такие элементы пропускаем
		var app Application
		if json.Unmarshal(raw, &app) == nil {
			apps = append(apps, app)
		}
	}

	e.Timestamp = ts
	e.AllApplications = apps
	e.Raw = append(e.Raw[:0], data...)
	return nil
}

func (e ZTNAEvent) MarshalJSON() ([]byte, error) {
	if len(e.Raw) > 0 {
		return e.Raw, nil
	}
	return json.Marshal(struct {
		Timestamp       int64         `json:"timestamp"`
		AllApplications []Application `json:"allapplications"`
	}{e.Timestamp, e.AllApplications})
}

func parseTimestamp(n json.Number) (int64, error) {
	if n == "" {
		return 0, nil
	}
	if v, err := n.Int64(); err == nil {
		return v, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", n, err)
	}
	return int64(f), nil
}
