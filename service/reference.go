package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewReference generates a unique provider-facing transaction reference
func NewReference() string {
	fragment := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("THR_%d_%s", time.Now().UnixMilli(), fragment)
}
