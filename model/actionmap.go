package model

import "fmt"

// ActionMap is the caller-supplied action_name<->4-bit code table (spec.md
// §6 "Action map"). Every code must be reversible at audit time, so both
// directions are kept in sync by AddAction rather than built independently.
type ActionMap struct {
	toCode map[string]uint8
	toName map[uint8]string
}

// NewActionMap returns the default table: none=0, move=1, plus category
// codes 10-15 reserved for caller-defined sub-id-carrying actions.
func NewActionMap() *ActionMap {
	m := &ActionMap{
		toCode: make(map[string]uint8),
		toName: make(map[uint8]string),
	}

	m.mustAdd("none", 0)
	m.mustAdd("move", ActionMove)

	for code := uint8(10); code <= 15; code++ {
		m.mustAdd(fmt.Sprintf("category_%d", code), code)
	}

	return m
}

func (m *ActionMap) mustAdd(name string, code uint8) {
	if err := m.AddAction(name, code); err != nil {
		panic(err)
	}
}

// AddAction registers or overrides a name<->code pair. code must be a valid
// 4-bit value (0-15).
func (m *ActionMap) AddAction(name string, code uint8) error {
	if code > 15 {
		return fmt.Errorf("model: action code %d exceeds 4 bits", code)
	}

	if existing, ok := m.toName[code]; ok && existing != name {
		delete(m.toCode, existing)
	}

	m.toCode[name] = code
	m.toName[code] = name

	return nil
}

// CodeToAction reverses a wire action code back to its name. Any code
// absent from the table still resolves, to an opaque "code_<n>" name, so an
// audit never fails structurally over an unrecognized code; the caller can
// treat that as a warning instead.
func (m *ActionMap) CodeToAction(code uint8) string {
	if name, ok := m.toName[code]; ok {
		return name
	}
	return fmt.Sprintf("code_%d", code)
}

// ActionToCode resolves a name to its wire code.
func (m *ActionMap) ActionToCode(name string) (uint8, bool) {
	code, ok := m.toCode[name]
	return code, ok
}
