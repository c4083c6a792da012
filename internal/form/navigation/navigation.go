// Package navigation derives the wizard's navigation controls and progress
// indicator from session state. It holds no state of its own.
package navigation

import "admissions-portal/internal/form/steps"

const (
	TestIDPrevious = "nav-previous"
	TestIDNext     = "nav-next"
	TestIDSubmit   = "nav-submit"
	TestIDBusy     = "nav-busy"
)

type View struct {
	CurrentStep  int
	StepCount    int
	StepComplete bool
	IsSubmitting bool
}

type Control struct {
	TestID  string `json:"testId"`
	Visible bool   `json:"visible"`
	Enabled bool   `json:"enabled"`
}

type Controls struct {
	Previous Control `json:"previous"`
	Next     Control `json:"next"`
	Submit   Control `json:"submit"`
	Busy     Control `json:"busy"`
}

func Render(v View) Controls {
	last := v.CurrentStep >= v.StepCount-1
	forward := v.StepComplete && !v.IsSubmitting

	return Controls{
		Previous: Control{TestID: TestIDPrevious, Visible: v.CurrentStep > 0, Enabled: v.CurrentStep > 0 && !v.IsSubmitting},
		Next:     Control{TestID: TestIDNext, Visible: !last, Enabled: !last && forward},
		Submit:   Control{TestID: TestIDSubmit, Visible: last, Enabled: last && forward},
		Busy:     Control{TestID: TestIDBusy, Visible: v.IsSubmitting},
	}
}

// Marker is one entry of the progress indicator.
type Marker struct {
	Index    int    `json:"index"`
	Key      string `json:"key"`
	Title    string `json:"title"`
	Complete bool   `json:"complete"`
	Active   bool   `json:"active"`
}

type Progress struct {
	Markers []Marker `json:"markers"`
	Percent int      `json:"percent"`
}

func RenderProgress(registry *steps.Registry, completion map[int]bool, current int) Progress {
	out := Progress{Markers: make([]Marker, 0, registry.Count())}
	done := 0
	for _, s := range registry.Steps() {
		complete := completion[s.Index]
		if complete {
			done++
		}
		out.Markers = append(out.Markers, Marker{
			Index:    s.Index,
			Key:      s.Key,
			Title:    s.Title,
			Complete: complete,
			Active:   s.Index == current,
		})
	}
	if registry.Count() > 0 {
		out.Percent = done * 100 / registry.Count()
	}
	return out
}
