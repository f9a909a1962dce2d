package crud

// form.go derives input fields from column metadata and validates submitted
// values against them.
//
// Validation collects every field failure in one pass so a re-rendered form
// can annotate all of them. Submitted strings are converted to the Go values
// the storage drivers bind: int64, float64, bool, time.Time or string.

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/JonMunkholm/crud/internal/storage"
)

// FieldDescriptor describes one form input.
type FieldDescriptor struct {
	Name      string
	Label     string
	Kind      storage.Kind
	MaxLength int  // 0 when unbounded
	Required  bool // NOT NULL without a default
	Nullable  bool
	Auto      bool // value assigned by the database when omitted
	Key       bool // part of the primary key
}

// InputType returns the HTML input type for the field.
func (f FieldDescriptor) InputType() string {
	switch f.Kind {
	case storage.KindInteger, storage.KindNumeric:
		return "number"
	case storage.KindBool:
		return "checkbox"
	case storage.KindDate:
		return "date"
	case storage.KindTimestamp:
		return "datetime-local"
	default:
		return "text"
	}
}

// FromColumns builds one field per operable column, in column order.
func FromColumns(meta []storage.Column, operable []string) []FieldDescriptor {
	want := make(map[string]bool, len(operable))
	for _, name := range operable {
		want[name] = true
	}

	fields := make([]FieldDescriptor, 0, len(operable))
	for _, col := range meta {
		if !want[col.Name] {
			continue
		}
		fields = append(fields, FieldDescriptor{
			Name:      col.Name,
			Label:     labelFor(col.Name),
			Kind:      col.Kind,
			MaxLength: col.MaxLength,
			Required:  !col.Nullable && !col.HasDefault && col.Kind != storage.KindBool,
			Nullable:  col.Nullable,
			Auto:      col.HasDefault,
			Key:       col.KeyPosition > 0,
		})
	}
	return fields
}

// labelFor turns a column name like "first_name" into "First name".
func labelFor(name string) string {
	s := strings.TrimSpace(strings.ReplaceAll(name, "_", " "))
	if s == "" {
		return name
	}
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + s[size:]
}

// Form holds the fields of one create or edit screen together with the raw
// values shown in the inputs and the errors to annotate them with.
type Form struct {
	Fields []FieldDescriptor
	Values map[string]string
	Errors map[string]string
	// Editing is set for edit forms; key fields are shown but not submitted.
	Editing bool
}

// NewForm returns an empty form over fields.
func NewForm(fields []FieldDescriptor, editing bool) *Form {
	return &Form{
		Fields:  fields,
		Values:  make(map[string]string, len(fields)),
		Errors:  make(map[string]string),
		Editing: editing,
	}
}

// Populate copies record values onto matching field names.
func (f *Form) Populate(rec storage.Record) {
	for _, fd := range f.Fields {
		v, ok := rec[fd.Name]
		if !ok {
			continue
		}
		f.Values[fd.Name] = formatInput(fd.Kind, v)
	}
}

// SetKey shows the identifier in the key fields of an edit form.
func (f *Form) SetKey(primaryKey, ids []string) {
	for i, name := range primaryKey {
		if i >= len(ids) {
			return
		}
		for _, fd := range f.Fields {
			if fd.Key && fd.Name == name {
				f.Values[name] = ids[i]
			}
		}
	}
}

// Bind copies submitted values onto the form. Checkbox fields absent from
// params are unchecked.
func (f *Form) Bind(params url.Values) {
	for _, fd := range f.Fields {
		if f.Editing && fd.Key {
			continue
		}
		if vs, ok := params[fd.Name]; ok && len(vs) > 0 {
			f.Values[fd.Name] = vs[len(vs)-1]
		} else if fd.Kind == storage.KindBool {
			f.Values[fd.Name] = ""
		}
	}
}

// Validate converts the bound values into a record ready for Insert or
// Update. Failures are returned together as a *ValidationError and also
// recorded in f.Errors.
func (f *Form) Validate() (storage.Record, error) {
	values := make(storage.Record, len(f.Fields))
	var errs []FieldError

	for _, fd := range f.Fields {
		if f.Editing && fd.Key {
			continue
		}

		raw, submitted := f.Values[fd.Name]
		if !submitted && fd.Kind != storage.KindBool {
			if f.Editing {
				continue
			}
			if fd.Required {
				errs = append(errs, FieldError{Field: fd.Name, Message: "is required"})
			}
			continue
		}

		v, omit, err := convertField(fd, raw)
		if err != nil {
			errs = append(errs, FieldError{Field: fd.Name, Value: raw, Message: err.Error()})
			continue
		}
		if !omit {
			values[fd.Name] = v
		}
	}

	if len(errs) == 0 && len(values) == 0 && f.Editing {
		errs = append(errs, FieldError{Message: "nothing to update"})
	}
	if len(errs) > 0 {
		for _, e := range errs {
			f.Errors[e.Field] = e.Message
		}
		return nil, &ValidationError{Fields: errs}
	}
	return values, nil
}

// convertField parses one raw input. omit reports that the column should be
// left to its database default.
func convertField(fd FieldDescriptor, raw string) (v any, omit bool, err error) {
	if fd.Kind == storage.KindBool {
		b, ok := parseBool(raw)
		if !ok {
			return nil, false, fmt.Errorf("must be true or false")
		}
		return b, false, nil
	}

	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		switch {
		case fd.Auto:
			return nil, true, nil
		case fd.Nullable:
			return nil, false, nil
		case raw != "" && (fd.Kind == storage.KindText || fd.Kind == storage.KindUnknown):
			// whitespace is a legitimate value for text columns
			return raw, false, nil
		default:
			return nil, false, fmt.Errorf("is required")
		}
	}

	switch fd.Kind {
	case storage.KindInteger:
		n, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return nil, false, fmt.Errorf("must be a whole number")
		}
		return n, false, nil

	case storage.KindNumeric:
		x, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, false, fmt.Errorf("must be a number")
		}
		return x, false, nil

	case storage.KindDate:
		t, err := time.Parse(dateLayout, trimmed)
		if err != nil {
			return nil, false, fmt.Errorf("must be a date (YYYY-MM-DD)")
		}
		return t, false, nil

	case storage.KindTimestamp:
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, trimmed); err == nil {
				return t, false, nil
			}
		}
		return nil, false, fmt.Errorf("must be a date and time (YYYY-MM-DD HH:MM)")

	case storage.KindUUID:
		id, err := uuid.Parse(trimmed)
		if err != nil {
			return nil, false, fmt.Errorf("must be a UUID")
		}
		return id.String(), false, nil

	default:
		if fd.MaxLength > 0 && utf8.RuneCountInString(raw) > fd.MaxLength {
			return nil, false, fmt.Errorf("must be at most %d characters", fd.MaxLength)
		}
		return raw, false, nil
	}
}

const dateLayout = "2006-01-02"

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// formatInput renders a stored value the way the matching input expects it.
func formatInput(kind storage.Kind, v any) string {
	t, ok := v.(time.Time)
	if !ok {
		return FormatValue(v)
	}
	switch kind {
	case storage.KindDate:
		return t.Format(dateLayout)
	case storage.KindTimestamp:
		return t.Format("2006-01-02T15:04")
	default:
		return FormatValue(v)
	}
}

// FormatValue renders a record value for display.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format(dateLayout)
		}
		return val.Format("2006-01-02 15:04:05")
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprint(val)
	}
}
