package dzforms

import "fmt"

// Template is a starting point offered by the template gallery
type Template struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// Templates lists the gallery in display order
var Templates = []Template{
	{ID: "blank", Name: "Blank Form", Fields: []string{}},
	{ID: "advanced-contact", Name: "Advanced Contact Form", Fields: []string{"name", "email", "phone", "message"}},
	{ID: "simple-contact", Name: "Simple Contact Form", Fields: []string{"name", "email", "message"}},
	{ID: "contest-entry", Name: "Contest Entry Form", Fields: []string{"name", "email", "entry"}},
	{ID: "donation", Name: "Donation Form", Fields: []string{"name", "amount", "message"}},
	{ID: "ecommerce", Name: "eCommerce Form", Fields: []string{"product", "quantity", "shipping"}},
	{ID: "stripe-checkout", Name: "Stripe Checkout Form", Fields: []string{"amount", "card", "billing"}},
	{ID: "paypal-checkout", Name: "PayPal Checkout Form", Fields: []string{"amount", "paypal", "notes"}},
	{ID: "order", Name: "Order Form", Fields: []string{"items", "quantity", "address"}},
	{ID: "event-registration", Name: "Event Registration Form", Fields: []string{"name", "email", "event", "guests"}},
	{ID: "survey", Name: "Survey Form", Fields: []string{"question1", "question2", "question3"}},
	{ID: "job-application", Name: "Job Application Form", Fields: []string{"name", "resume", "experience"}},
}

// FindTemplate looks a template up by id
func FindTemplate(id string) (Template, bool) {
	for _, t := range Templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// Description is stored on forms created from t
func (t Template) Description() string {
	return fmt.Sprintf("Created from %s template", t.Name)
}

type fieldSpec struct {
	typ         string
	label       string
	required    bool
	placeholder string
	options     []string
}

// templateFields maps the short names used by templates to full fields
var templateFields = map[string]fieldSpec{
	"name":       {typ: TypeText, label: "Name", required: true, placeholder: "Your name"},
	"email":      {typ: TypeEmail, label: "Email", required: true, placeholder: "you@example.com"},
	"phone":      {typ: TypeText, label: "Phone", placeholder: "Phone number"},
	"message":    {typ: TypeTextarea, label: "Message", required: true, placeholder: "Your message"},
	"entry":      {typ: TypeTextarea, label: "Entry", required: true},
	"amount":     {typ: TypeNumber, label: "Amount", required: true, placeholder: "0.00"},
	"product":    {typ: TypeSelect, label: "Product", required: true, options: defaultOptions(3)},
	"quantity":   {typ: TypeNumber, label: "Quantity", required: true, placeholder: "1"},
	"shipping":   {typ: TypeTextarea, label: "Shipping Address", required: true},
	"card":       {typ: TypeText, label: "Card Details", required: true},
	"billing":    {typ: TypeTextarea, label: "Billing Address"},
	"paypal":     {typ: TypeEmail, label: "PayPal Email", required: true},
	"notes":      {typ: TypeTextarea, label: "Notes"},
	"items":      {typ: TypeTextarea, label: "Items", required: true},
	"address":    {typ: TypeTextarea, label: "Address", required: true},
	"event":      {typ: TypeSelect, label: "Event", required: true, options: defaultOptions(3)},
	"guests":     {typ: TypeNumber, label: "Number of Guests", placeholder: "0"},
	"question1":  {typ: TypeRadio, label: "Question 1", options: []string{"Yes", "No"}},
	"question2":  {typ: TypeRadio, label: "Question 2", options: []string{"Yes", "No"}},
	"question3":  {typ: TypeTextarea, label: "Question 3"},
	"resume":     {typ: TypeTextarea, label: "Resume", required: true},
	"experience": {typ: TypeTextarea, label: "Experience"},
}

// ExpandField turns a template field name into a full field. Unknown names
// become optional text inputs labelled after the name.
func ExpandField(name string) Field {
	spec, ok := templateFields[name]
	if !ok {
		spec = fieldSpec{typ: TypeText, label: name}
	}
	f := Field{
		ID:          newFieldID(),
		Name:        name,
		Label:       spec.label,
		Type:        spec.typ,
		Required:    spec.required,
		Placeholder: spec.placeholder,
	}
	if spec.options != nil {
		f.Options = append([]string(nil), spec.options...)
	}
	return f
}

// Expand returns the template's fields
func (t Template) Expand() []Field {
	out := make([]Field, 0, len(t.Fields))
	for _, name := range t.Fields {
		out = append(out, ExpandField(name))
	}
	return out
}

// DefaultEmbedFields is rendered for forms that have no fields yet. Their ids
// are fixed so the rendered script stays cacheable.
func DefaultEmbedFields() []Field {
	fields := Template{Fields: []string{"name", "email", "message"}}.Expand()
	for i := range fields {
		fields[i].ID = "field_" + fields[i].Name
	}
	return fields
}

// Resolve returns fields, or the default embed fields when fields is empty
func Resolve(fields []Field) []Field {
	if len(fields) == 0 {
		return DefaultEmbedFields()
	}
	return fields
}
