package reminder

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is a reminder category. The set is fixed.
type Kind string

const (
	KindDeadline24h   Kind = "deadline_24h"
	KindDeadline2h    Kind = "deadline_2h"
	KindDeadline30Min Kind = "deadline_30min"
	KindTaskAssigned  Kind = "task_assigned"
	KindDailySummary  Kind = "daily_summary"
	KindTaskReminder  Kind = "task_reminder"
)

var ErrUnknownKind = errors.New("unknown reminder kind")

var allKinds = [...]Kind{
	KindDeadline24h,
	KindDeadline2h,
	KindDeadline30Min,
	KindTaskAssigned,
	KindDailySummary,
	KindTaskReminder,
}

// AllKinds returns the fixed enumeration in declaration order.
func AllKinds() []Kind {
	out := make([]Kind, len(allKinds))
	copy(out, allKinds[:])
	return out
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range allKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

func (k Kind) String() string { return string(k) }
