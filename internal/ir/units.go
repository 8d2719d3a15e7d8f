package ir

import (
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/api/resource"
)

// Millicores converts a CPU quantity ("250m", "1.5", "2") to millicores
func Millicores(s string) (int64, error) {
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, fmt.Errorf("invalid cpu quantity %q: %w", s, err)
	}
	return q.MilliValue(), nil
}

// Bytes converts a memory or storage quantity ("256Mi", "1G") to bytes
func Bytes(s string) (int64, error) {
	q, err := resource.ParseQuantity(s)
	if err != nil {
		return 0, fmt.Errorf("invalid quantity %q: %w", s, err)
	}
	return q.Value(), nil
}

// Seconds converts a duration property to whole seconds. Integers are
// already seconds.
func Seconds(v any) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case string:
		d, err := time.ParseDuration(t)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", t, err)
		}
		if d%time.Second != 0 {
			return 0, fmt.Errorf("duration %q is not a whole number of seconds", t)
		}
		return int64(d / time.Second), nil
	}
	return 0, fmt.Errorf("unsupported duration value %T", v)
}

// FormatMillicores renders millicores as a Kubernetes CPU quantity
func FormatMillicores(m int64) string {
	q := resource.NewMilliQuantity(m, resource.DecimalSI)
	return q.String()
}

// FormatBytes renders bytes as a Kubernetes memory quantity
func FormatBytes(b int64) string {
	q := resource.NewQuantity(b, resource.BinarySI)
	return q.String()
}
