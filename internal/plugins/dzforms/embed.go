package dzforms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// Snippet is the HTML a site owner pastes to show a form
func Snippet(baseURL string, formID int64) string {
	return fmt.Sprintf("<script src=\"%s\" async></script>\n<div id=\"%s\"></div>",
		ScriptURL(baseURL, formID), ContainerID(formID))
}

// ScriptURL is the address of the embed script for formID
func ScriptURL(baseURL string, formID int64) string {
	return fmt.Sprintf("%s/embed/form/%d.js", strings.TrimRight(baseURL, "/"), formID)
}

// ContainerID is the element the embed script renders into
func ContainerID(formID int64) string {
	return fmt.Sprintf("dz-form-%d", formID)
}

type embedConfig struct {
	FormID    int64   `json:"formId"`
	Name      string  `json:"name"`
	Container string  `json:"container"`
	Endpoint  string  `json:"endpoint"`
	Fields    []Field `json:"fields"`
}

var embedTemplate = template.Must(template.New("embed").Parse(`(function () {
  var cfg = {{.}};
  function el(tag, attrs, text) {
    var n = document.createElement(tag);
    for (var k in attrs || {}) { if (attrs[k] !== undefined && attrs[k] !== false) n.setAttribute(k, attrs[k] === true ? "" : attrs[k]); }
    if (text) n.textContent = text;
    return n;
  }
  function input(f) {
    var id = cfg.container + "-" + f.name;
    switch (f.type) {
    case "textarea":
      return el("textarea", { id: id, name: f.name, placeholder: f.placeholder, required: !!f.required });
    case "select":
      var s = el("select", { id: id, name: f.name, required: !!f.required });
      s.appendChild(el("option", { value: "" }, "Select an option"));
      (f.options || []).forEach(function (o) { s.appendChild(el("option", { value: o }, o)); });
      return s;
    case "radio":
    case "checkbox":
      var g = el("div", { "class": "dz-form-group" });
      (f.options || []).forEach(function (o) {
        var l = el("label");
        l.appendChild(el("input", { type: f.type, name: f.name, value: o }));
        l.appendChild(document.createTextNode(" " + o));
        g.appendChild(l);
      });
      return g;
    case "hidden":
      return el("input", { type: "hidden", name: f.name, value: f.defaultValue || "" });
    case "number":
    case "email":
      return el("input", { id: id, type: f.type, name: f.name, placeholder: f.placeholder, required: !!f.required });
    default:
      return el("input", { id: id, type: "text", name: f.name, placeholder: f.placeholder, required: !!f.required });
    }
  }
  function render(root) {
    var form = el("form", { "class": "dz-form", novalidate: true });
    cfg.fields.forEach(function (f) {
      if (f.type === "html") { var h = el("div", { "class": "dz-form-html" }); h.innerHTML = f.htmlContent || ""; form.appendChild(h); return; }
      if (f.type === "section") { form.appendChild(el("h3", { "class": "dz-form-section" }, f.label)); return; }
      if (f.type === "hidden") { form.appendChild(input(f)); return; }
      var row = el("div", { "class": "dz-form-field" });
      row.appendChild(el("label", { "for": cfg.container + "-" + f.name }, f.label + (f.required ? " *" : "")));
      row.appendChild(input(f));
      form.appendChild(row);
    });
    var status = el("div", { "class": "dz-form-status", role: "status" });
    form.appendChild(el("button", { type: "submit" }, "Submit"));
    form.appendChild(status);
    form.addEventListener("submit", function (e) {
      e.preventDefault();
      var data = {};
      cfg.fields.forEach(function (f) {
        if (f.type === "html" || f.type === "section") return;
        if (f.type === "checkbox") {
          data[f.name] = Array.prototype.map.call(form.querySelectorAll("input[name=\"" + f.name + "\"]:checked"), function (c) { return c.value; });
          return;
        }
        if (f.type === "radio") {
          var c = form.querySelector("input[name=\"" + f.name + "\"]:checked");
          data[f.name] = c ? c.value : "";
          return;
        }
        var n = form.elements[f.name];
        data[f.name] = n ? n.value : "";
      });
      fetch(cfg.endpoint, { method: "POST", headers: { "Content-Type": "application/json" }, body: JSON.stringify(data) })
        .then(function (r) { return r.json().then(function (b) { return { ok: r.ok, body: b }; }); })
        .then(function (res) {
          if (res.ok) { form.reset(); status.textContent = "Thank you! Your submission has been received."; }
          else { status.textContent = (res.body && res.body.message) || "Submission failed."; }
        })
        .catch(function () { status.textContent = "Submission failed."; });
    });
    root.appendChild(form);
  }
  function mount() {
    var root = document.getElementById(cfg.container);
    if (root) render(root);
  }
  if (document.readyState === "loading") document.addEventListener("DOMContentLoaded", mount);
  else mount();
})();
`))

// EmbedScript renders the JavaScript that draws the form into its container
// and posts submissions back to baseURL. Forms without fields render the
// default contact fields.
func EmbedScript(baseURL string, formID int64, name string, fields []Field) ([]byte, error) {
	cfg, err := json.Marshal(embedConfig{
		FormID:    formID,
		Name:      name,
		Container: ContainerID(formID),
		Endpoint:  fmt.Sprintf("%s/api/dzforms/forms/%d/entries", strings.TrimRight(baseURL, "/"), formID),
		Fields:    Resolve(fields),
	})
	if err != nil {
		return nil, fmt.Errorf("encode embed config: %w", err)
	}

	var buf bytes.Buffer
	if err := embedTemplate.Execute(&buf, string(cfg)); err != nil {
		return nil, fmt.Errorf("render embed script: %w", err)
	}
	return buf.Bytes(), nil
}
