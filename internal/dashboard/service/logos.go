package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"os"

	"go.uber.org/zap"
)

// Logo — картинка шапки страницы.
type Logo struct {
	Data        []byte
	ContentType string
}

// Logos — пара логотипов шапки. Шапка показывается, только если загрузились оба.
type Logos struct {
	Items []Logo
	Err   error
}

// Ready сообщает, можно ли показывать шапку.
func (l Logos) Ready() bool {
	return l.Err == nil && len(l.Items) == 2
}

// LoadLogos читает и проверяет оба логотипа. Ошибка не фатальна: страница
// работает без шапки и показывает сообщение.
func LoadLogos(logger *zap.Logger, paths ...string) Logos {
	items := make([]Logo, 0, len(paths))
	for _, path := range paths {
		logo, err := loadLogo(path)
		if err != nil {
			logger.Warn("failed to load logo", zap.String("path", path), zap.Error(err))
			return Logos{Err: err}
		}
		items = append(items, logo)
	}
	return Logos{Items: items}
}

func loadLogo(path string) (Logo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Logo{}, fmt.Errorf("read logo %s: %w", path, err)
	}
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return Logo{}, fmt.Errorf("decode logo %s: %w", path, err)
	}
	return Logo{Data: data, ContentType: http.DetectContentType(data)}, nil
}
