// Package validate performs pre-deployment static checks over a registry:
// descriptor completeness, class wiring, and application parameter hints
// with schema generation. Each issue becomes a structured finding carrying
// severity and the declaration's source location; any error-severity finding
// aborts deployment.
package validate

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/tensorlakeai/tensorlake-go/manifest"
	"github.com/tensorlakeai/tensorlake-go/runtime/function"
	"github.com/tensorlakeai/tensorlake-go/runtime/registry"
	"github.com/tensorlakeai/tensorlake-go/runtime/sdkerrors"
	"github.com/tensorlakeai/tensorlake-go/runtime/serializer"
)

// Severity classifies a finding. Errors abort deployment; warnings do not.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type (
	// Finding is one validation issue tied to the declaration that caused it.
	Finding struct {
		Severity Severity
		Message  string
		File     string
		Line     int
	}

	// Findings is the ordered result of one validation pass.
	Findings []Finding
)

// String renders "file:line: severity: message".
func (f Finding) String() string {
	if f.File == "" {
		return fmt.Sprintf("%s: %s", f.Severity, f.Message)
	}
	return fmt.Sprintf("%s:%d: %s: %s", f.File, f.Line, f.Severity, f.Message)
}

// HasErrors reports whether any finding is an error.
func (fs Findings) HasErrors() bool {
	for _, f := range fs {
		if f.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Err folds error-severity findings into one deployment-aborting error, nil
// when validation passed.
func (fs Findings) Err() error {
	var msgs string
	n := 0
	for _, f := range fs {
		if f.Severity != SeverityError {
			continue
		}
		if n > 0 {
			msgs += "; "
		}
		msgs += f.String()
		n++
	}
	if n == 0 {
		return nil
	}
	return sdkerrors.NewUsageError("validation failed with %d error(s): %s", n, msgs)
}

// Check runs every pre-deployment check over the registry and returns the
// findings in a stable order: functions, classes, then applications, each
// sorted by name.
func Check(reg *registry.Registry) Findings {
	var fs Findings
	fs = append(fs, checkFunctions(reg)...)
	fs = append(fs, checkClasses(reg)...)
	for _, app := range reg.Applications() {
		fs = append(fs, checkApplication(app)...)
	}
	return fs
}

// checkFunctions verifies descriptor completeness and method wiring: a
// handler must exist, and a method function must name a registered class.
func checkFunctions(reg *registry.Registry) Findings {
	var fs Findings
	for _, fn := range reg.Functions() {
		if fn.Handler() == nil {
			fs = append(fs, finding(SeverityError, fn.File(), fn.Line(),
				"function %q has no handler; the declaration is incomplete", fn.Name()))
		}
		if _, err := serializer.Get(fn.InputSerializer()); err != nil {
			fs = append(fs, finding(SeverityError, fn.File(), fn.Line(),
				"function %q declares unknown input serializer %q", fn.Name(), fn.InputSerializer()))
		}
		if _, err := serializer.Get(fn.OutputSerializer()); err != nil {
			fs = append(fs, finding(SeverityError, fn.File(), fn.Line(),
				"function %q declares unknown output serializer %q", fn.Name(), fn.OutputSerializer()))
		}
		cls := fn.Class()
		if cls == "" {
			continue
		}
		if _, ok := reg.Class(cls); !ok {
			fs = append(fs, finding(SeverityError, fn.File(), fn.Line(),
				"function %q is a method of class %q, which is not registered", fn.Name(), cls))
		}
	}
	return fs
}

// checkClasses verifies every class carries a constructor and does not
// shadow a function name.
func checkClasses(reg *registry.Registry) Findings {
	var fs Findings
	for _, cls := range reg.Classes() {
		if cls.Constructor() == nil {
			fs = append(fs, finding(SeverityError, cls.File(), cls.Line(),
				"class %q has no constructor; declare one taking only a context", cls.Name()))
		}
		if _, ok := reg.Function(cls.Name()); ok {
			fs = append(fs, finding(SeverityWarning, cls.File(), cls.Line(),
				"class %q shares its name with a function; qualify one of them", cls.Name()))
		}
	}
	return fs
}

// checkApplication verifies the entrypoint contract: every parameter named
// and hinted so a schema can be generated, hints resolving to registered
// type tokens, and the parameter and return schemas compiling.
func checkApplication(app *function.Application) Findings {
	var fs Findings
	seen := make(map[string]bool)
	for i, p := range app.Params() {
		if p.Name == "" {
			fs = append(fs, finding(SeverityError, app.File(), app.Line(),
				"application %q parameter %d has no name", app.Name(), i))
			continue
		}
		if seen[p.Name] {
			fs = append(fs, finding(SeverityError, app.File(), app.Line(),
				"application %q declares parameter %q twice", app.Name(), p.Name))
		}
		seen[p.Name] = true
		if p.TypeToken == "" && p.Schema == nil {
			fs = append(fs, finding(SeverityError, app.File(), app.Line(),
				"application %q parameter %q has no type hint; declare a type token or a schema", app.Name(), p.Name))
			continue
		}
		if p.TypeToken != "" && p.Schema == nil && !serializer.KnownToken(p.TypeToken) {
			fs = append(fs, finding(SeverityError, app.File(), app.Line(),
				"application %q parameter %q uses unregistered type token %q", app.Name(), p.Name, p.TypeToken))
			continue
		}
		if err := compileParamSchema(p); err != nil {
			fs = append(fs, finding(SeverityError, app.File(), app.Line(),
				"application %q parameter %q schema does not compile: %v", app.Name(), p.Name, err))
		}
	}
	if ret := app.ReturnHint(); ret.TypeToken != "" || ret.Schema != nil {
		if ret.TypeToken != "" && ret.Schema == nil && !serializer.KnownToken(ret.TypeToken) {
			fs = append(fs, finding(SeverityError, app.File(), app.Line(),
				"application %q return hint uses unregistered type token %q", app.Name(), ret.TypeToken))
		} else if err := compileParamSchema(ret); err != nil {
			fs = append(fs, finding(SeverityError, app.File(), app.Line(),
				"application %q return schema does not compile: %v", app.Name(), err))
		}
	}
	return fs
}

// compileParamSchema compiles the schema the manifest would ship for one
// declared parameter.
func compileParamSchema(p function.Param) error {
	doc := p.Schema
	if doc == nil {
		doc = manifest.SchemaFor(p.TypeToken)
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var norm any
	if err := json.Unmarshal(data, &norm); err != nil {
		return err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", norm); err != nil {
		return err
	}
	if _, err := c.Compile("schema.json"); err != nil {
		return err
	}
	return nil
}

func finding(sev Severity, file string, line int, format string, args ...any) Finding {
	return Finding{
		Severity: sev,
		Message:  fmt.Sprintf(format, args...),
		File:     file,
		Line:     line,
	}
}
