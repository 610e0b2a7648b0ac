package ades

import "fmt"

// Message is a keyed, human readable validation message.
type Message struct {
	Key   string `json:"key" xml:"Key,attr"`
	Value string `json:"value" xml:",chardata"`
}

// String returns "key: value".
func (m Message) String() string {
	return fmt.Sprintf("%s: %s", m.Key, m.Value)
}

// Conclusion is the verdict of a validation step.
type Conclusion struct {
	Indication    Indication    `json:"indication" xml:"Indication"`
	SubIndication SubIndication `json:"subIndication,omitempty" xml:"SubIndication,omitempty"`
	Errors        []Message     `json:"errors,omitempty" xml:"Errors>Error,omitempty"`
	Warnings      []Message     `json:"warnings,omitempty" xml:"Warnings>Warning,omitempty"`
	Infos         []Message     `json:"infos,omitempty" xml:"Infos>Info,omitempty"`
}

// Passed returns a PASSED conclusion.
func Passed() *Conclusion {
	return &Conclusion{Indication: IndicationPassed}
}

// Failed returns a FAILED conclusion with the given sub-indication.
func Failed(sub SubIndication) *Conclusion {
	return &Conclusion{Indication: IndicationFailed, SubIndication: sub}
}

// Indeterminate returns an INDETERMINATE conclusion with the given sub-indication.
func Indeterminate(sub SubIndication) *Conclusion {
	return &Conclusion{Indication: IndicationIndeterminate, SubIndication: sub}
}

// New returns a conclusion with the given indication. The sub-indication is
// dropped when the indication does not allow one.
func New(ind Indication, sub SubIndication) *Conclusion {
	if !ind.AllowsSubIndication() {
		sub = SubIndicationNone
	}
	return &Conclusion{Indication: ind, SubIndication: sub}
}

// Valid reports whether the conclusion satisfies the sub-indication invariant.
func (c *Conclusion) Valid() bool {
	if c == nil || c.Indication == IndicationNone {
		return false
	}
	return c.SubIndication == SubIndicationNone || c.Indication.AllowsSubIndication()
}

// IsPassed returns true if the indication is PASSED or TOTAL_PASSED.
func (c *Conclusion) IsPassed() bool {
	return c != nil && (c.Indication == IndicationPassed || c.Indication == IndicationTotalPassed)
}

// IsFailed returns true if the indication is FAILED or TOTAL_FAILED.
func (c *Conclusion) IsFailed() bool {
	return c != nil && (c.Indication == IndicationFailed || c.Indication == IndicationTotalFailed)
}

// IsIndeterminate returns true if the indication is INDETERMINATE.
func (c *Conclusion) IsIndeterminate() bool {
	return c != nil && c.Indication == IndicationIndeterminate
}

// AddError adds an error to the conclusion.
func (c *Conclusion) AddError(key, value string) {
	c.Errors = append(c.Errors, Message{Key: key, Value: value})
}

// AddWarning adds a warning to the conclusion.
func (c *Conclusion) AddWarning(key, value string) {
	c.Warnings = append(c.Warnings, Message{Key: key, Value: value})
}

// AddInfo adds information to the conclusion.
func (c *Conclusion) AddInfo(key, value string) {
	c.Infos = append(c.Infos, Message{Key: key, Value: value})
}

// Merge appends the messages of other to c.
func (c *Conclusion) Merge(other *Conclusion) {
	if other == nil {
		return
	}
	c.Errors = append(c.Errors, other.Errors...)
	c.Warnings = append(c.Warnings, other.Warnings...)
	c.Infos = append(c.Infos, other.Infos...)
}

// Clone returns a deep copy of the conclusion.
func (c *Conclusion) Clone() *Conclusion {
	if c == nil {
		return nil
	}
	out := &Conclusion{Indication: c.Indication, SubIndication: c.SubIndication}
	out.Errors = append([]Message(nil), c.Errors...)
	out.Warnings = append([]Message(nil), c.Warnings...)
	out.Infos = append([]Message(nil), c.Infos...)
	return out
}

// String renders the conclusion as "INDICATION" or "INDICATION/SUB_INDICATION".
func (c *Conclusion) String() string {
	if c == nil {
		return "<nil>"
	}
	if c.SubIndication == SubIndicationNone {
		return c.Indication.String()
	}
	return c.Indication.String() + "/" + c.SubIndication.String()
}
