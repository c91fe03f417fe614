package builder

// Diagnostic records a non-fatal failure absorbed during a build: a skipped
// optional link, a missing background image, a decoration step that did not
// take. The produced image is still valid, possibly missing cosmetics.
type Diagnostic struct {
	Stage string
	Err   error
}

func (d Diagnostic) String() string {
	return d.Stage + ": " + d.Err.Error()
}

func collect(diags []Diagnostic, stage string, errs ...error) []Diagnostic {
	for _, err := range errs {
		if err != nil {
			diags = append(diags, Diagnostic{Stage: stage, Err: err})
		}
	}
	return diags
}
