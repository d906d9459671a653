// Package profile holds the static business profile the assistant
// answers questions about. The profile is read from the config file at
// startup and never changes while the process runs.
package profile

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/emersion/go-vcard"
)

// BusinessProfile describes the business the assistant represents.
type BusinessProfile struct {
	CompanyName string   `yaml:"company_name" json:"companyName"`
	Tagline     string   `yaml:"tagline" json:"tagline"`
	Founded     string   `yaml:"founded" json:"founded"`
	Services    []string `yaml:"services" json:"services"`
	Clients     []string `yaml:"clients" json:"clients"`
	Mission     string   `yaml:"mission" json:"mission"`
	Values      []string `yaml:"values" json:"values"`
	Contact     Contact  `yaml:"contact" json:"contact"`
}

// Contact holds the business's public contact details.
type Contact struct {
	Email   string `yaml:"email" json:"email"`
	Phone   string `yaml:"phone" json:"phone"`
	Website string `yaml:"website" json:"website"`
	Address string `yaml:"address" json:"address"`
}

// ApplyDefaults fills an unconfigured profile with the built-in sample
// business so the demo works before anyone edits the config file. A
// profile with a company name set is left untouched.
func (p *BusinessProfile) ApplyDefaults() {
	if p.CompanyName != "" {
		return
	}

	*p = BusinessProfile{
		CompanyName: "Brightline Web Studio",
		Tagline:     "Websites that work as hard as you do",
		Founded:     "2019",
		Services: []string{
			"Custom website design and build",
			"Brand refresh and visual identity",
			"Search optimization tune-ups",
			"Monthly site care plans",
		},
		Clients: []string{
			"Harbor & Vine Restaurant Group",
			"Cedarfield Veterinary Clinic",
			"Atlas Climbing Collective",
			"Marigold Event Co.",
		},
		Mission: "Give small businesses a web presence they are proud to send customers to.",
		Values: []string{
			"Plain language over jargon",
			"Ship small, ship often",
			"Every client gets a direct line to the people doing the work",
		},
		Contact: Contact{
			Email:   "hello@brightlineweb.example",
			Phone:   "+1-555-014-0192",
			Website: "https://brightlineweb.example",
			Address: "412 Foundry Row, Suite 2B, Portland, OR",
		},
	}
}

// JSON renders the profile as a JSON string for tool results.
func (p BusinessProfile) JSON() (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding profile: %w", err)
	}
	return string(data), nil
}

// VCard renders the business contact card in vCard 4.0 format.
func (p BusinessProfile) VCard() ([]byte, error) {
	card := make(vcard.Card)
	card.SetValue(vcard.FieldFormattedName, p.CompanyName)
	card.SetValue(vcard.FieldOrganization, p.CompanyName)
	if p.Contact.Email != "" {
		card.SetValue(vcard.FieldEmail, p.Contact.Email)
	}
	if p.Contact.Phone != "" {
		card.SetValue(vcard.FieldTelephone, p.Contact.Phone)
	}
	if p.Contact.Website != "" {
		card.SetValue(vcard.FieldURL, p.Contact.Website)
	}
	if p.Tagline != "" {
		card.SetValue(vcard.FieldNote, p.Tagline)
	}
	vcard.ToV4(card)

	var buf bytes.Buffer
	if err := vcard.NewEncoder(&buf).Encode(card); err != nil {
		return nil, fmt.Errorf("encoding vcard: %w", err)
	}
	return buf.Bytes(), nil
}
