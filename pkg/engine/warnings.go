package engine

import "fmt"

type WarningKind string

const (
	WarningDegradedEntry    WarningKind = "degraded_entry"
	WarningUnmappedControl  WarningKind = "unmapped_control"
	WarningUnknownFramework WarningKind = "unknown_framework"
)

// Warning is a non-fatal condition found while building a report.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Subject string      `json:"subject"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Kind, w.Subject, w.Message)
}

func degradedEntry(checkID string, v interface{}) Warning {
	return Warning{
		Kind:    WarningDegradedEntry,
		Subject: checkID,
		Message: fmt.Sprintf("skipping invalid finding: expected an object, got %s", typeName(v)),
	}
}

func unmappedControl(checkID string) Warning {
	return Warning{
		Kind:    WarningUnmappedControl,
		Subject: checkID,
		Message: "no compliance mapping in payload or control map",
	}
}

func unknownFramework(id string) Warning {
	return Warning{
		Kind:    WarningUnknownFramework,
		Subject: id,
		Message: "framework is not recognized and will not be scored",
	}
}
