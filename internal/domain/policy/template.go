package policy

import "strings"

// RenderTemplate replaces each literal "{{ name }}" token in template with
// the context value for name. Unknown tokens are left in place; there is no
// expression syntax.
func RenderTemplate(template string, context map[string]string) string {
	for name, value := range context {
		template = strings.ReplaceAll(template, "{{ "+name+" }}", value)
	}
	return template
}
