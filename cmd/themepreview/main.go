// Command themepreview prints one sample answer in every theme.
package main

import (
	"fmt"

	"docchat-cli/internal/citation"
	"docchat-cli/internal/present"
	"docchat-cli/internal/render"
)

const (
	gray  = "\033[38;5;242m"
	reset = "\033[0m"
	bold  = "\033[1m"
	dim   = "\033[2m"
)

const sample = "## Итоги квартала\n\n" +
	"Выручка выросла на **12%**, расходы остались *на уровне* прошлого года.\n\n" +
	"| Показатель | Q1 | Q2 |\n|---|---|---|\n| Выручка | 100 | 112 |\n| Расходы | 80 | 81 |\n\n" +
	"1. Рост продаж в регионах\n2. Новые контракты\n   - два крупных\n   - пять малых\n\n" +
	"> Прогноз на Q3 сохраняется.\n\n" +
	"```go\nfmt.Println(\"total:\", 112)\n```\n" +
	" Metadata:eyJmaWxlbmFtZSI6ICJyZXBvcnQucGRmIiwgInBhZ2UiOiAzfQ=="

const width = 72

func main() {
	answer := citation.Clean(sample)
	doc := render.Render(answer.Text, render.Options{})

	fmt.Println()
	fmt.Println(bold + "═══ Pick a theme ═══" + reset)

	for _, name := range []string{present.ThemeDark, present.ThemeLight, present.ThemePlain} {
		fmt.Println()
		fmt.Println(dim + "Theme: " + name + reset + gray + fmt.Sprintf("  (docchat set theme %s)", name) + reset)
		fmt.Println()
		fmt.Println(present.NewPrinter(present.ThemeFor(name), width).Document(doc))
	}
	fmt.Println()
}
