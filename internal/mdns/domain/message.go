package domain

// Message is a full DNS message: the header plus its four ordered
// sections. UpdateCounts must be called before serialization so the
// header's counts reflect the sections' actual lengths.
type Message struct {
	Header      Header
	Questions   []Question
	Answers     []Resource
	Authorities []Resource
	Additionals []Resource
}

// UpdateCounts writes the length of each section into the header.
func (m *Message) UpdateCounts() {
	m.Header.QDCount = uint16(len(m.Questions))
	m.Header.ANCount = uint16(len(m.Answers))
	m.Header.NSCount = uint16(len(m.Authorities))
	m.Header.ARCount = uint16(len(m.Additionals))
}

// IsEmpty reports whether the message carries no questions and no
// resources in any section.
func (m *Message) IsEmpty() bool {
	return len(m.Questions) == 0 && len(m.Answers) == 0 &&
		len(m.Authorities) == 0 && len(m.Additionals) == 0
}

// SectionSlice returns a pointer to the slice backing the given section.
// SectionExpired has no backing slice; callers must not pass it.
func (m *Message) SectionSlice(section ResourceSection) *[]Resource {
	switch section {
	case SectionAnswer:
		return &m.Answers
	case SectionAuthority:
		return &m.Authorities
	case SectionAdditional:
		return &m.Additionals
	default:
		return nil
	}
}
