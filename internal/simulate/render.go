package simulate

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/okian/wagerpool/internal/domain/model"
	"github.com/pterm/pterm"
)

// Render writes the report as tables.
func Render(w io.Writer, rep *Report) error {
	sections := []struct {
		title string
		data  pterm.TableData
	}{
		{"Steps", stepTable(rep)},
		{"Balances", balanceTable(rep)},
		{"Rounds", roundTable(rep)},
	}
	for _, s := range sections {
		table, err := pterm.DefaultTable.WithHasHeader().WithData(s.data).Srender()
		if err != nil {
			return fmt.Errorf("render %s: %w", strings.ToLower(s.title), err)
		}
		if _, err := fmt.Fprintf(w, "%s\n%s\n\n", pterm.LightCyan(s.title), table); err != nil {
			return err
		}
	}

	summary := pterm.Success.Sprintf("%s: %d steps passed", rep.Scenario, len(rep.Steps))
	if n := rep.Failed(); n > 0 {
		summary = pterm.Error.Sprintf("%s: %d of %d steps failed", rep.Scenario, n, len(rep.Steps))
	}
	_, err := fmt.Fprintln(w, summary)
	return err
}

func stepTable(rep *Report) pterm.TableData {
	data := pterm.TableData{{"#", "Action", "Round", "Signer", "Expect", "Got", "Result"}}
	for _, s := range rep.Steps {
		result := pterm.Green("pass")
		if !s.OK() {
			result = pterm.Red(strings.Join(s.Failures, "; "))
		}
		data = append(data, []string{
			strconv.Itoa(s.Index), s.Action, s.Round, s.Signer, s.Expect, s.Got, result,
		})
	}
	return data
}

func balanceTable(rep *Report) pterm.TableData {
	data := pterm.TableData{{"Name", "Address", "Lamports", "SOL"}}
	for _, b := range rep.Balances {
		data = append(data, []string{
			b.Name, b.Address.Short(), strconv.FormatUint(b.Lamports, 10), model.FormatSOL(b.Lamports),
		})
	}
	return data
}

func roundTable(rep *Report) pterm.TableData {
	data := pterm.TableData{{"Round", "Address", "Bid (SOL)", "Deposits", "Finished"}}
	for _, r := range rep.Rounds {
		data = append(data, []string{
			r.ID,
			r.Address.Short(),
			model.FormatSOL(r.Bid),
			fmt.Sprintf("%d/%d", r.DepositedCount, r.Capacity),
			strconv.FormatBool(r.Finished),
		})
	}
	return data
}
