package render

// Letterhead is the fixed boilerplate around every letter body.
type Letterhead struct {
	Name           string
	Qualifications string
	Contact        string
	Closing        string
	// Signature lines; the first is set in bold.
	Signature []string
}

var DefaultLetterhead = Letterhead{
	Name:           "Mr MANGATTIL RAJESH",
	Qualifications: "FRCS (Gen) MCh (Orth) FRCS (Orth) MBA",
	Contact:        "Office: 0203 1500 222 | Mob: 07928 333 999",
	Closing:        "Yours sincerely,",
	Signature: []string{
		"Mr MANGATTIL RAJESH FRCS (Orth) MBA",
		"Clinical Lead in Spine Surgery",
		"Consultant Spine Surgeon",
		"Royal London Hospital",
		"LONDON",
	},
}

// Recipient is the addressee block.
type Recipient struct {
	Name    string
	Email   string
	Address string
}

const DefaultAddress = "London"
