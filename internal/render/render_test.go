package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	body := "Lease between {{landlord_name}} and {{ tenant_name }}.\n\n{{pet_clause}}\n\nSigned: {{tenant_name}}"

	tests := []struct {
		name           string
		bindings       map[string]string
		wantText       string
		wantUnresolved []string
	}{
		{
			name:     "all bound",
			bindings: map[string]string{"landlord_name": "John Smith", "tenant_name": "Jane Doe", "pet_clause": "No pets."},
			wantText: "Lease between John Smith and Jane Doe.\n\nNo pets.\n\nSigned: Jane Doe",
		},
		{
			name:           "optional unbound",
			bindings:       map[string]string{"landlord_name": "John Smith", "tenant_name": "Jane Doe"},
			wantText:       "Lease between John Smith and Jane Doe.\n\n[[UNRESOLVED: pet_clause]]\n\nSigned: Jane Doe",
			wantUnresolved: []string{"pet_clause"},
		},
		{
			name:           "blank value is unbound",
			bindings:       map[string]string{"landlord_name": "  ", "tenant_name": "Jane Doe", "pet_clause": "x"},
			wantText:       "Lease between [[UNRESOLVED: landlord_name]] and Jane Doe.\n\nx\n\nSigned: Jane Doe",
			wantUnresolved: []string{"landlord_name"},
		},
		{
			name:           "nothing bound",
			bindings:       nil,
			wantText:       "Lease between [[UNRESOLVED: landlord_name]] and [[UNRESOLVED: tenant_name]].\n\n[[UNRESOLVED: pet_clause]]\n\nSigned: [[UNRESOLVED: tenant_name]]",
			wantUnresolved: []string{"landlord_name", "tenant_name", "pet_clause"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Render(body, tt.bindings)
			assert.Equal(t, tt.wantText, got.Text)
			assert.Equal(t, tt.wantUnresolved, got.Unresolved)
		})
	}
}

func TestRenderValuesAreLiteral(t *testing.T) {
	got := Render("Hello {{name}}", map[string]string{"name": "{{other}} $1"})
	assert.Equal(t, "Hello {{other}} $1", got.Text)
	assert.Empty(t, got.Unresolved)
}

func TestRenderIsDeterministic(t *testing.T) {
	bindings := map[string]string{"a": "1", "b": "2"}
	first := Render("{{a}}{{b}}{{c}}{{d}}", bindings)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Render("{{a}}{{b}}{{c}}{{d}}", bindings))
	}
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, Placeholders("{{a}} {{ b }} {{a}} {notakey}"))
	assert.Nil(t, Placeholders("plain"))
}

func TestHTML(t *testing.T) {
	out, err := HTML("# Lease\n\nBetween **Jane Doe** and <script>x</script>\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>Lease</h1>")
	assert.Contains(t, out, "<strong>Jane Doe</strong>")
	assert.Contains(t, out, "<table>")
	assert.NotContains(t, out, "<script>")
}
