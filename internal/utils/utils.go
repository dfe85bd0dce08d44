package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GENERATEID GENERATES A UNIQUE ID WITH PREFIX
func GenerateID(prefix string) string {
	id := uuid.New().String()
	return fmt.Sprintf("%s_%s", prefix, strings.Replace(id, "-", "", -1))
}

// FORMATDURATION FORMATS A DURATION AS "XHYMZS"
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
