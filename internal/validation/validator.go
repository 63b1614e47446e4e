// Package validation provides centralized input validation.
//
// SYSTEM ARCHITECTURE ROLE:
// This module checks user input before it reaches the service layer: settings
// edited in the TUI form or through `fieldmark settings set`, and the
// arguments of CLI commands that create or render notes.
//
// KEY RESPONSIBILITIES:
// - Define validation schemas for settings and command parameters
// - Compile the stat pattern once at validation time so a bad expression is
//   reported on the settings surface instead of during reconciliation
// - Flag risky but legal settings (empty prefix, start-anchored pattern) as warnings
//
// INTEGRATION POINTS:
// - internal/service/service.go: UpdateSettings validates before saving
// - internal/cli/cli.go: note paths and output formats are validated per command
// - internal/ui/model.go: the settings form shows the first error or warning
// - internal/errors/errors.go: ValidationResult.ToAppError() converts failures
//
// VALIDATION FLOW:
// 1. Input is converted to a parameter map
// 2. Validator checks every field of the matching schema
// 3. Schema rules check cross-field constraints (pattern + dialect)
// 4. Failures produce a ValidationResult with field-specific errors
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dpshade/fieldmark/internal/errors"
	"github.com/dpshade/fieldmark/internal/marker"
	"github.com/dpshade/fieldmark/internal/models"
)

// FieldValidator provides validation rules for individual fields
type FieldValidator struct {
	Name      string
	Required  bool
	MinLength int
	MaxLength int
	Pattern   *regexp.Regexp
	Options   []string
	Custom    func(string) error
	Warn      func(string) string
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	Valid    bool                `json:"valid"`
	Errors   []ValidationError   `json:"errors,omitempty"`
	Warnings []ValidationWarning `json:"warnings,omitempty"`
	Data     map[string]string   `json:"data,omitempty"`
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// ValidationWarning represents a field validation warning
type ValidationWarning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Schema represents a validation schema
type Schema struct {
	Name   string
	Fields map[string]FieldValidator
	Rules  []func(map[string]string) *ValidationError
}

// Validator provides centralized validation functionality
type Validator struct {
	schemas map[string]*Schema
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	v := &Validator{
		schemas: make(map[string]*Schema),
	}

	v.registerBuiltinSchemas()

	return v
}

// RegisterSchema registers a validation schema
func (v *Validator) RegisterSchema(schema *Schema) {
	v.schemas[schema.Name] = schema
}

// Validate validates data against a schema
func (v *Validator) Validate(schemaName string, data map[string]string) *ValidationResult {
	schema, exists := v.schemas[schemaName]
	if !exists {
		return &ValidationResult{
			Valid: false,
			Errors: []ValidationError{{
				Field:   "schema",
				Code:    "SCHEMA_NOT_FOUND",
				Message: fmt.Sprintf("Validation schema '%s' not found", schemaName),
			}},
		}
	}

	result := &ValidationResult{
		Valid: true,
		Data:  make(map[string]string),
	}

	for _, fieldName := range sortedFields(schema) {
		v.validateField(fieldName, schema.Fields[fieldName], data, result)
	}

	// Schema rules only run once every field is individually valid
	if result.Valid {
		for _, rule := range schema.Rules {
			if verr := rule(data); verr != nil {
				result.Valid = false
				result.Errors = append(result.Errors, *verr)
			}
		}
	}

	return result
}

func sortedFields(schema *Schema) []string {
	names := make([]string, 0, len(schema.Fields))
	for name := range schema.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// validateField validates a single field
func (v *Validator) validateField(fieldName string, validator FieldValidator, data map[string]string, result *ValidationResult) {
	value, exists := data[fieldName]

	if validator.Required && (!exists || strings.TrimSpace(value) == "") {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:   fieldName,
			Code:    "REQUIRED_FIELD_MISSING",
			Message: fmt.Sprintf("Field '%s' is required", fieldName),
		})
		return
	}

	if !exists {
		return
	}

	result.Data[fieldName] = value

	if validator.MinLength > 0 && len(value) < validator.MinLength {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:   fieldName,
			Code:    "MIN_LENGTH_VIOLATION",
			Message: fmt.Sprintf("Field '%s' must be at least %d characters long", fieldName, validator.MinLength),
			Value:   value,
		})
	}

	if validator.MaxLength > 0 && len(value) > validator.MaxLength {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:   fieldName,
			Code:    "MAX_LENGTH_VIOLATION",
			Message: fmt.Sprintf("Field '%s' must be at most %d characters long", fieldName, validator.MaxLength),
			Value:   value,
		})
	}

	if validator.Pattern != nil && value != "" && !validator.Pattern.MatchString(value) {
		result.Valid = false
		result.Errors = append(result.Errors, ValidationError{
			Field:   fieldName,
			Code:    "PATTERN_MISMATCH",
			Message: fmt.Sprintf("Field '%s' does not match required pattern", fieldName),
			Value:   value,
		})
	}

	if len(validator.Options) > 0 && value != "" {
		validOption := false
		for _, option := range validator.Options {
			if value == option {
				validOption = true
				break
			}
		}
		if !validOption {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   fieldName,
				Code:    "INVALID_OPTION",
				Message: fmt.Sprintf("Field '%s' must be one of: %s", fieldName, strings.Join(validator.Options, ", ")),
				Value:   value,
			})
		}
	}

	if validator.Custom != nil {
		if err := validator.Custom(value); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   fieldName,
				Code:    "CUSTOM_VALIDATION_FAILED",
				Message: fmt.Sprintf("Field '%s': %s", fieldName, err.Error()),
				Value:   value,
			})
		}
	}

	if validator.Warn != nil {
		if msg := validator.Warn(value); msg != "" {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   fieldName,
				Message: msg,
				Value:   value,
			})
		}
	}
}

// registerBuiltinSchemas registers the settings and command schemas
func (v *Validator) registerBuiltinSchemas() {
	v.RegisterSchema(&Schema{
		Name: "settings",
		Fields: map[string]FieldValidator{
			"statRegex": {
				Name:      "statRegex",
				Required:  true,
				MaxLength: 1000,
				Warn: func(expr string) string {
					if marker.IsStartAnchored(expr) {
						return "pattern is anchored at the line start; the marker prefix will stop it matching and lines will flip on every pass"
					}
					return ""
				},
			},
			"unfilledStatPrefix": {
				Name:      "unfilledStatPrefix",
				MaxLength: 32,
				Custom: func(prefix string) error {
					if strings.ContainsAny(prefix, "\r\n") {
						return fmt.Errorf("prefix cannot contain a line break")
					}
					return nil
				},
				Warn: func(prefix string) string {
					if prefix == "" {
						return "empty prefix disables marking"
					}
					return ""
				},
			},
			"templatesDirectory": {
				Name:      "templatesDirectory",
				MaxLength: 500,
				Custom:    validDirectory,
			},
			"targetHighlightingDirectory": {
				Name:      "targetHighlightingDirectory",
				MaxLength: 500,
				Custom:    validDirectory,
			},
			"trigger": {
				Name:    "trigger",
				Options: []string{string(models.TriggerKeyUp), string(models.TriggerClick)},
			},
			"patternDialect": {
				Name:    "patternDialect",
				Options: []string{string(models.DialectRE2), string(models.DialectECMAScript)},
			},
		},
		Rules: []func(map[string]string) *ValidationError{
			func(data map[string]string) *ValidationError {
				expr := data["statRegex"]
				if _, err := marker.CompilePattern(expr, models.PatternDialect(data["patternDialect"])); err != nil {
					return &ValidationError{
						Field:   "statRegex",
						Code:    "INVALID_PATTERN",
						Message: fmt.Sprintf("Pattern does not compile: %s", err.Error()),
						Value:   expr,
					}
				}
				return nil
			},
		},
	})

	v.RegisterSchema(&Schema{
		Name: "new_note",
		Fields: map[string]FieldValidator{
			"template": {
				Name:      "template",
				Required:  true,
				MaxLength: 500,
			},
			"path": {
				Name:      "path",
				Required:  true,
				MaxLength: 1000,
				Pattern:   regexp.MustCompile(`\.md$`),
				Custom:    validNotePath,
			},
		},
	})

	v.RegisterSchema(&Schema{
		Name: "show_note",
		Fields: map[string]FieldValidator{
			"path": {
				Name:     "path",
				Required: true,
				Custom:   validNotePath,
			},
			"format": {
				Name:    "format",
				Options: []string{"text", "json", "markdown"},
			},
		},
	})

	v.RegisterSchema(&Schema{
		Name: "migrate_prefix",
		Fields: map[string]FieldValidator{
			"from": {
				Name:      "from",
				Required:  true,
				MaxLength: 32,
			},
		},
	})
}

func validDirectory(dir string) error {
	if strings.Contains(dir, "..") {
		return fmt.Errorf("directory cannot contain '..'")
	}
	if strings.ContainsRune(dir, 0) {
		return fmt.Errorf("directory contains NUL")
	}
	return nil
}

func validNotePath(p string) error {
	if strings.Contains(p, "..") {
		return fmt.Errorf("path cannot leave the vault")
	}
	if strings.HasPrefix(p, "/") {
		return fmt.Errorf("path must be relative to the vault")
	}
	return nil
}

var settingsFields = SettingsData(models.Settings{})

// SettingsData converts settings into the parameter map the "settings" schema expects
func SettingsData(s models.Settings) map[string]string {
	return map[string]string{
		"statRegex":                   s.StatRegex,
		"unfilledStatPrefix":          s.UnfilledStatPrefix,
		"templatesDirectory":          s.TemplatesDirectory,
		"targetHighlightingDirectory": s.TargetHighlightingDirectory,
		"trigger":                     string(s.Trigger),
		"patternDialect":              string(s.PatternDialect),
	}
}

// ValidateSettings runs the "settings" schema over s
func (v *Validator) ValidateSettings(s models.Settings) *ValidationResult {
	return v.Validate("settings", SettingsData(s))
}

// ToAppError converts validation result to AppError. A pattern that fails to
// compile becomes a configuration error so hosts can tell it apart.
func (result *ValidationResult) ToAppError() *errors.AppError {
	if result.Valid {
		return nil
	}

	if len(result.Errors) == 0 {
		return errors.ValidationError("Validation failed")
	}

	firstError := result.Errors[0]
	var appErr *errors.AppError
	switch firstError.Code {
	case "INVALID_PATTERN":
		appErr = errors.ConfigurationError(firstError.Value, fmt.Errorf("%s", firstError.Message))
	case "REQUIRED_FIELD_MISSING":
		appErr = errors.MissingFieldError(firstError.Field)
	case "MIN_LENGTH_VIOLATION", "MAX_LENGTH_VIOLATION":
		appErr = errors.InvalidInputError(firstError.Field, firstError.Message)
	case "PATTERN_MISMATCH", "INVALID_OPTION", "CUSTOM_VALIDATION_FAILED":
		appErr = errors.InvalidFormatError(firstError.Field, firstError.Value, firstError.Message)
	default:
		appErr = errors.ValidationError(firstError.Message)
	}

	// Settings failures keep the field-level code as their cause
	if _, ok := settingsFields[firstError.Field]; ok && appErr.Code != errors.ErrCodeInvalidPattern {
		setting := errors.InvalidSettingError(firstError.Field, firstError.Message)
		setting.Cause = appErr
		appErr = setting
	}

	var details []string
	for _, validationErr := range result.Errors {
		details = append(details, fmt.Sprintf("%s: %s", validationErr.Field, validationErr.Message))
	}

	appErr.WithDetails(strings.Join(details, "; "))

	appErr.WithContext("validation_errors", result.Errors)
	if len(result.Warnings) > 0 {
		appErr.WithContext("validation_warnings", result.Warnings)
	}

	return appErr
}

// FirstWarning returns the first warning message, or ""
func (result *ValidationResult) FirstWarning() string {
	if len(result.Warnings) == 0 {
		return ""
	}
	w := result.Warnings[0]
	return fmt.Sprintf("%s: %s", w.Field, w.Message)
}
