package capture

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Extras snapshot bounds. Values beyond these are dropped, never truncated
// mid-rune.
const (
	maxExtrasEntries     = 32
	maxExtrasStringBytes = 1024
)

// Event is one posted-notification payload from the listener boundary.
type Event struct {
	Key         string         `json:"key"`          // Stable identifier for cancel calls.
	Tag         string         `json:"tag"`          // Optional listener tag.
	PackageName string         `json:"package_name"` // Source application package.
	AppName     string         `json:"app_name"`     // Optional display name supplied by the bridge.
	PostTime    time.Time      `json:"post_time"`    // When the OS posted the notification.
	Title       string         `json:"title"`        // Notification title.
	Text        string         `json:"text"`         // Notification body text.
	SubText     string         `json:"sub_text"`     // Notification sub text.
	Category    string         `json:"category"`     // OS notification category tag.
	Extras      map[string]any `json:"extras"`       // Opaque key/value snapshot.
}

// boundedExtras filters the extras map down to primitive values within the
// size bounds and serializes it. Unknown keys are kept; unsupported value
// types are skipped.
func boundedExtras(extras map[string]any) datatypes.JSON {
	if len(extras) == 0 {
		return nil
	}
	kept := make(map[string]any, len(extras))
	for key, value := range extras {
		if len(kept) >= maxExtrasEntries {
			break
		}
		switch v := value.(type) {
		case string:
			if len(v) > maxExtrasStringBytes {
				continue
			}
			kept[key] = v
		case bool, float64, float32, int, int32, int64, uint, uint32, uint64:
			kept[key] = v
		case json.Number:
			kept[key] = v
		}
	}
	if len(kept) == 0 {
		return nil
	}
	raw, errMarshal := json.Marshal(kept)
	if errMarshal != nil {
		return nil
	}
	return datatypes.JSON(raw)
}
