package models

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// AttributeCode identifies a kind-specific additional attribute as carried by
// upstream event feeds.
type AttributeCode int

const (
	AttrMilkMorning    AttributeCode = 59
	AttrMilkEvening    AttributeCode = 61
	AttrMilkMidday     AttributeCode = 68
	AttrDisposalReason AttributeCode = 247
)

var (
	// ErrUnknownAttribute indicates an attribute code outside the supported set.
	ErrUnknownAttribute = errors.New("unknown attribute code")
	// ErrAttributeKind indicates an attribute that does not belong to the event kind.
	ErrAttributeKind = errors.New("attribute not allowed for event kind")
	// ErrAttributeValue indicates a value that could not be parsed.
	ErrAttributeValue = errors.New("invalid attribute value")
)

var attributeKinds = map[AttributeCode]EventKind{
	AttrMilkMorning:    EventMilking,
	AttrMilkEvening:    EventMilking,
	AttrMilkMidday:     EventMilking,
	AttrDisposalReason: EventExit,
}

// DecodeAttributes converts a raw "code -> value" map into the typed payload of
// the given event kind. Empty values are skipped.
func DecodeAttributes(kind EventKind, raw map[string]any) (*Milking, *Exit, error) {
	var (
		milking *Milking
		exit    *Exit
	)
	switch kind {
	case EventMilking:
		milking = &Milking{}
	case EventExit:
		exit = &Exit{}
	}

	for key, value := range raw {
		code, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %q", ErrUnknownAttribute, key)
		}
		attr := AttributeCode(code)
		owner, ok := attributeKinds[attr]
		if !ok {
			return nil, nil, fmt.Errorf("%w: %d", ErrUnknownAttribute, code)
		}
		if owner != kind {
			return nil, nil, fmt.Errorf("%w: %d on %s event", ErrAttributeKind, code, kind)
		}
		if isEmptyValue(value) {
			continue
		}

		switch attr {
		case AttrMilkMorning, AttrMilkEvening, AttrMilkMidday:
			volume, err := toFloat(value)
			if err != nil || volume < 0 {
				return nil, nil, fmt.Errorf("%w: attribute %d=%v", ErrAttributeValue, code, value)
			}
			switch attr {
			case AttrMilkMorning:
				milking.Morning = &volume
			case AttrMilkEvening:
				milking.Evening = &volume
			default:
				milking.Midday = &volume
			}
		case AttrDisposalReason:
			reason, err := toInt(value)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: attribute %d=%v", ErrAttributeValue, code, value)
			}
			exit.DisposalReason = &reason
		}
	}

	return milking, exit, nil
}

func isEmptyValue(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	default:
		return false
	}
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	default:
		return 0, fmt.Errorf("unsupported type %T", value)
	}
}

func toInt(value any) (int, error) {
	f, err := toFloat(value)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("not an integer: %v", f)
	}
	return int(f), nil
}
