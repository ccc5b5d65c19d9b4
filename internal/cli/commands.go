package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"scadenze/internal/core"
	"scadenze/internal/services"
)

// Env is what a command runs against.
type Env struct {
	Engine *services.Engine
	Out    io.Writer
}

// Opener builds the command environment; the returned func releases it.
type Opener func(ctx context.Context) (*Env, func(), error)

// Commands returns every scadenze-cli subcommand.
func Commands(open Opener) []subcommands.Command {
	return []subcommands.Command{
		&addCmd{open: open},
		&listCmd{open: open},
		&pendingCmd{open: open},
		&decideCmd{open: open, name: "accept"},
		&decideCmd{open: open, name: "reject"},
		&firstCmd{open: open},
		&deleteCmd{open: open},
	}
}

// run opens the environment, runs fn and maps the error to an exit status.
func run(ctx context.Context, open Opener, fn func(ctx context.Context, env *Env) error) subcommands.ExitStatus {
	env, release, err := open(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer release()

	if err := fn(ctx, env); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type addCmd struct {
	open Opener

	label     string
	amount    string
	frequency string
	day       int
	weekday   string
	month     int
	created   string
	first     string
}

func (*addCmd) Name() string     { return "add" }
func (*addCmd) Synopsis() string { return "add a recurring obligation" }
func (*addCmd) Usage() string {
	return `scadenze-cli add -label <label> -amount <amount> -freq monthly|weekly|annual [rule flags]

  monthly:  -day <1-31>
  weekly:   -weekday <monday..sunday>
  annual:   -month <1-12> -day <1-31>

  When the current period's date already passed, the first occurrence is
  reported; answer it with -first materialize|skip or later with the
  "first" command.
`
}

func (c *addCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.label, "label", "", "Obligation label (unique).")
	f.StringVar(&c.amount, "amount", "", "Amount in euro, e.g. 45,00.")
	f.StringVar(&c.frequency, "freq", "monthly", "Frequency: monthly, weekly or annual.")
	f.IntVar(&c.day, "day", 0, "Day of month (monthly, annual).")
	f.StringVar(&c.weekday, "weekday", "", "Weekday (weekly).")
	f.IntVar(&c.month, "month", 0, "Month 1-12 (annual).")
	f.StringVar(&c.created, "created", "", "Creation date YYYY-MM-DD (defaults to today).")
	f.StringVar(&c.first, "first", "", "Answer the first-occurrence prompt: materialize or skip.")
}

func (c *addCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.open, c.add)
}

func (c *addCmd) add(ctx context.Context, env *Env) error {
	o, err := c.obligation()
	if err != nil {
		return err
	}
	result, err := env.Engine.CreateObligation(ctx, o)
	if err != nil {
		return err
	}
	fmt.Fprintf(env.Out, "Added %s: %s, %s\n", result.Obligation.Label,
		core.FormatEUR(result.Obligation.Amount), result.Obligation.Rule)

	prompt := result.FirstOccurrence
	if prompt == nil {
		return nil
	}
	if c.first == "" {
		fmt.Fprintf(env.Out, "The %s occurrence already passed; record it with:\n  scadenze-cli first -label %q -decision materialize|skip\n",
			prompt.ExpectedDate, prompt.Label)
		return nil
	}
	decision, err := services.ParseDecision(c.first)
	if err != nil {
		return err
	}
	cmd := prompt.Skip()
	if decision == services.DecisionMaterialize {
		cmd = prompt.Materialize()
	}
	outcome, err := env.Engine.Execute(ctx, cmd)
	if err != nil {
		return err
	}
	printOutcome(env.Out, outcome)
	return nil
}

func (c *addCmd) obligation() (core.Obligation, error) {
	amount, err := core.ParseAmount(c.amount)
	if err != nil {
		return core.Obligation{}, &core.ValidationError{Field: "amount", Err: err}
	}
	rule, err := core.RuleSpec{
		Frequency:  core.Frequency(strings.ToLower(c.frequency)),
		DayOfMonth: dayFor(c.frequency, c.day, core.Monthly),
		Weekday:    c.weekday,
		Month:      c.month,
		Day:        dayFor(c.frequency, c.day, core.Annual),
	}.Rule()
	if err != nil {
		return core.Obligation{}, err
	}
	var created core.Date
	if c.created != "" {
		if created, err = core.ParseDate(c.created); err != nil {
			return core.Obligation{}, err
		}
	}
	return core.Obligation{Label: c.label, Amount: amount, Rule: rule, CreatedAt: created}, nil
}

// dayFor routes the shared -day flag to the field of the given frequency.
func dayFor(frequency string, day int, want core.Frequency) int {
	if core.Frequency(strings.ToLower(frequency)) == want {
		return day
	}
	return 0
}

type listCmd struct {
	open Opener
}

func (*listCmd) Name() string             { return "list" }
func (*listCmd) Synopsis() string         { return "list obligations" }
func (*listCmd) Usage() string            { return "scadenze-cli list\n" }
func (*listCmd) SetFlags(_ *flag.FlagSet) {}

func (c *listCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.open, func(ctx context.Context, env *Env) error {
		obligations, err := env.Engine.ListObligations(ctx)
		if err != nil {
			return err
		}
		if len(obligations) == 0 {
			fmt.Fprintln(env.Out, "No obligations.")
			return nil
		}
		tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LABEL\tAMOUNT\tSCHEDULE\tSINCE")
		for _, o := range obligations {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Label, core.FormatEUR(o.Amount), o.Rule, o.CreatedAt)
		}
		return tw.Flush()
	})
}

type pendingCmd struct {
	open Opener
	asOf string
}

func (*pendingCmd) Name() string     { return "pending" }
func (*pendingCmd) Synopsis() string { return "list occurrences waiting for a decision" }
func (*pendingCmd) Usage() string    { return "scadenze-cli pending [-as-of YYYY-MM-DD]\n" }

func (c *pendingCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.asOf, "as-of", "", "Reconcile as of this date, at most today (defaults to today).")
}

func (c *pendingCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.open, func(ctx context.Context, env *Env) error {
		var asOf core.Date
		if c.asOf != "" {
			d, err := core.ParseDate(c.asOf)
			if err != nil {
				return err
			}
			asOf = d
		}
		asOf = env.Engine.PendingAsOf(asOf)
		pending, err := env.Engine.ListPending(ctx, asOf)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Fprintf(env.Out, "Nothing pending as of %s.\n", asOf)
			return nil
		}
		tw := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "LABEL\tDATE\tAMOUNT\tOVERDUE")
		for _, p := range pending {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%dd\n", p.Obligation.Label, p.ExpectedDate,
				core.FormatEUR(p.Obligation.Amount), p.DaysOverdue)
		}
		return tw.Flush()
	})
}

// decideCmd implements both accept and reject.
type decideCmd struct {
	open Opener
	name string

	label string
	date  string
}

func (c *decideCmd) Name() string { return c.name }
func (c *decideCmd) Synopsis() string {
	if c.name == "accept" {
		return "record a pending occurrence in the ledger"
	}
	return "dismiss a pending occurrence"
}
func (c *decideCmd) Usage() string {
	return fmt.Sprintf("scadenze-cli %s -label <label> -date YYYY-MM-DD\n", c.name)
}

func (c *decideCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.label, "label", "", "Obligation label.")
	f.StringVar(&c.date, "date", "", "Expected date of the occurrence.")
}

func (c *decideCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.open, func(ctx context.Context, env *Env) error {
		date, err := core.ParseDate(c.date)
		if err != nil {
			return err
		}
		var cmd services.Command = services.AcceptOccurrence{Label: c.label, ExpectedDate: date}
		if c.name == "reject" {
			cmd = services.RejectOccurrence{Label: c.label, ExpectedDate: date}
		}
		outcome, err := env.Engine.Execute(ctx, cmd)
		if err != nil {
			return err
		}
		printOutcome(env.Out, outcome)
		return nil
	})
}

type firstCmd struct {
	open Opener

	label    string
	decision string
}

func (*firstCmd) Name() string     { return "first" }
func (*firstCmd) Synopsis() string { return "answer the first-occurrence prompt of an obligation" }
func (*firstCmd) Usage() string {
	return "scadenze-cli first -label <label> -decision materialize|skip\n"
}

func (c *firstCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.label, "label", "", "Obligation label.")
	f.StringVar(&c.decision, "decision", "", "materialize or skip.")
}

func (c *firstCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.open, func(ctx context.Context, env *Env) error {
		decision, err := services.ParseDecision(c.decision)
		if err != nil {
			return err
		}
		outcome, err := env.Engine.Execute(ctx, services.ResolveFirstOccurrence{Label: c.label, Decision: decision})
		if err != nil {
			return err
		}
		printOutcome(env.Out, outcome)
		return nil
	})
}

type deleteCmd struct {
	open  Opener
	label string
}

func (*deleteCmd) Name() string     { return "delete" }
func (*deleteCmd) Synopsis() string { return "delete an obligation and its rejections" }
func (*deleteCmd) Usage() string    { return "scadenze-cli delete -label <label>\n" }

func (c *deleteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.label, "label", "", "Obligation label.")
}

func (c *deleteCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	return run(ctx, c.open, func(ctx context.Context, env *Env) error {
		if err := env.Engine.DeleteObligation(ctx, c.label); err != nil {
			return err
		}
		fmt.Fprintf(env.Out, "Deleted %s.\n", c.label)
		return nil
	})
}

func printOutcome(w io.Writer, o services.Outcome) {
	switch {
	case o.Skipped:
		fmt.Fprintf(w, "Skipped %s on %s.\n", o.Label, o.ExpectedDate)
	case o.Rejected:
		fmt.Fprintf(w, "Rejected %s on %s.\n", o.Label, o.ExpectedDate)
	case o.AlreadyResolved:
		fmt.Fprintf(w, "%s on %s was already recorded (%s).\n", o.Label, o.ExpectedDate, o.MovementRef)
	default:
		fmt.Fprintf(w, "Recorded %s on %s (%s).\n", o.Label, o.ExpectedDate, o.MovementRef)
	}
}
