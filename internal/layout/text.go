package layout

import (
	"fmt"
	"strings"
	"time"

	"dsigen/internal/dates"
	"dsigen/internal/model"
)

// Letterhead holds the fixed unit text printed on every directive.
type Letterhead struct {
	// Tag follows the number on the first line, e.g. "S3/24º BIS".
	Tag      string
	Reviewer string
	Unit     []string
	City     string
	Signer   []string
}

// Parade holds the "FORMATURA GERAL" fields.
type Parade struct {
	Purpose string `json:"finalidade"`
	Day     string `json:"dia"`
	March   string `json:"dobrado"`
	Song    string `json:"cancao"`
	GS      string `json:"gs"`
	Armed   string `json:"armado"`
}

// Content is everything that varies between directives.
type Content struct {
	Number     string
	Issued     time.Time
	S, S1      model.Period
	WeekTag    string
	Phase      string
	Operations []string
	Courses    []string
	Dates      []string

	Parade      Parade
	Future      string
	Units       string
	NotExecuted string
}

// Title is the document title.
func Title(c Content) string {
	return fmt.Sprintf("DIRETRIZ SEMANAL DE INSTRUÇÃO %s (%s)", c.Number, dates.PeriodTitle(c.S1))
}

func listOrDash(lines []string, format func(i int, l string) string) []string {
	if len(lines) == 0 {
		return []string{"-"}
	}
	out := make([]string, 0, len(lines))
	for i, l := range lines {
		out = append(out, format(i, l))
	}
	return out
}

func asIs(_ int, l string) string { return l }

func indented(_ int, l string) string { return " " + l }

func numbered(i int, l string) string { return fmt.Sprintf(" %d) %s", i+1, l) }

// Preamble is the text placed before the week S table.
func Preamble(h Letterhead, c Content) string {
	var b []string
	b = append(b,
		fmt.Sprintf("DSI Nº %s - %s", c.Number, h.Tag),
		fmt.Sprintf("%d %s %02d", c.Issued.Day(), dates.Month(c.Issued), c.Issued.Year()%100),
		"Visto S3:",
		"_____________",
		h.Reviewer,
		"",
	)
	b = append(b, h.Unit...)
	b = append(b,
		"",
		Title(c),
		"",
		fmt.Sprintf("(QTS nº %s - SI: %s - FASE: %s)", c.Number, c.WeekTag, c.Phase),
		"",
		"1. OPERAÇÕES:",
	)
	b = append(b, listOrDash(c.Operations, asIs)...)
	b = append(b, "", "2. CURSOS E ESTÁGIOS")
	b = append(b, listOrDash(c.Courses, numbered)...)
	b = append(b, "", "3. DATAS COMEMORATIVAS E FERIADOS")
	b = append(b, listOrDash(c.Dates, indented)...)
	b = append(b,
		"",
		"4. PERÍODO",
		"",
		" a. Semana (S) - "+dates.PeriodTitle(c.S),
		"",
	)
	return strings.Join(b, "\n")
}

// Interlude is the text between the two tables.
func Interlude(c Content) string {
	return "\n b. Semana (S+1) - " + dates.PeriodTitle(c.S1) + "\n"
}

// numberedBlock renders free text one item per non-blank line, or
// placeholder when there is none.
func numberedBlock(text, placeholder string) []string {
	var out []string
	for _, l := range strings.Split(strings.TrimSpace(text), "\n") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, fmt.Sprintf(" %d. %s", len(out)+1, l))
		}
	}
	if len(out) == 0 {
		return []string{placeholder}
	}
	return out
}

// Closing is the text after the week S+1 table, through the signature.
func Closing(h Letterhead, c Content) string {
	p := c.Parade
	b := []string{
		"\n5. FORMATURA GERAL",
		" 1) Finalidade: " + p.Purpose,
		" 2) Dia: " + p.Day,
		" 3) Dobrado: " + p.March,
		" 4) Canção: " + p.Song,
		" 5) GS: " + p.GS,
		" 6) Armado e Equipado: " + p.Armed,
		"",
		"6. ATIVIDADES FUTURAS",
	}
	b = append(b, numberedBlock(c.Future, " ________________________________________________")...)
	b = append(b, "", "7. SU")
	b = append(b, numberedBlock(c.Units, " 1. ______________________________________")...)
	b = append(b, "", "8. ATIVIDADES PLANEJADAS E NÃO EXECUTADAS")
	b = append(b, numberedBlock(c.NotExecuted, " ________________________________________________")...)
	b = append(b, "", Signature(h, c.Issued)+"\n\n\n\n"+strings.Join(h.Signer, "\n")+"\n")
	return strings.Join(b, "\n")
}

// Signature is the place-and-date line, e.g. "São Luís, MA, 11 de junho de 2025".
func Signature(h Letterhead, d time.Time) string {
	return fmt.Sprintf("%s, %d de %s de %d", h.City, d.Day(), dates.MonthLong(d), d.Year())
}
