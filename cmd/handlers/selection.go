package handlers

import (
	"fmt"

	"github.com/spf13/cobra"

	"papers/internal/render"
	"papers/internal/selection"
)

// NewSelectionCmd creates the selection command family.
func NewSelectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "selection",
		Short: "Manage named selections of papers",
		Long: `A selection is a named, ordered list of curated paper references.
Commands that take no selection argument apply to the active selection.`,
	}
	cmd.AddCommand(newSelectionListCmd())
	cmd.AddCommand(newSelectionCreateCmd())
	cmd.AddCommand(newSelectionOpenCmd())
	cmd.AddCommand(newSelectionDeleteCmd())
	cmd.AddCommand(newSelectionShowCmd())
	cmd.AddCommand(newSelectionAddCmd())
	cmd.AddCommand(newSelectionRemoveCmd())
	return cmd
}

func newSelectionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List selections",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(false)
			if err != nil {
				return err
			}
			defer app.Close()

			active := app.Selections.ActiveName()
			names := app.Selections.ListNames()
			if len(names) == 0 {
				fmt.Println("no selections; create one with: papers selection create <name>")
				return nil
			}
			for i, name := range names {
				marker := " "
				if name == active {
					marker = "*"
				}
				fmt.Printf("%s %2d. %s\n", marker, i+1, name)
			}
			return nil
		},
	}
}

func newSelectionCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a selection and make it active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(false)
			if err != nil {
				return err
			}
			defer app.Close()

			name := args[0]
			if err := selection.ValidateName(name); err != nil {
				return err
			}
			for _, existing := range app.Selections.ListNames() {
				if existing == name {
					return fmt.Errorf("%w: %q", selection.ErrAlreadyExists, name)
				}
			}
			if err := app.Selections.Save(&selection.Selection{Name: name, Entries: []selection.Entry{}}); err != nil {
				return err
			}
			if err := app.Selections.SaveState(selection.State{Active: &name}); err != nil {
				return err
			}
			fmt.Printf("created selection %q (active)\n", name)
			return nil
		},
	}
}

func newSelectionOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open <name-or-index>",
		Short: "Make a selection active",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(false)
			if err != nil {
				return err
			}
			defer app.Close()

			name, err := app.Selections.Resolve(args[0])
			if err != nil {
				return err
			}
			if err := app.Selections.SaveState(selection.State{Active: &name}); err != nil {
				return err
			}
			fmt.Printf("opened selection %q\n", name)
			return nil
		},
	}
}

func newSelectionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name-or-index>",
		Short: "Delete a selection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(false)
			if err != nil {
				return err
			}
			defer app.Close()

			name, err := app.Selections.Resolve(args[0])
			if err != nil {
				return err
			}
			if err := app.Selections.Delete(name); err != nil {
				return err
			}
			if app.Selections.ActiveName() == name {
				if err := app.Selections.SaveState(selection.State{}); err != nil {
					return err
				}
			}
			fmt.Printf("deleted selection %q\n", name)
			return nil
		},
	}
}

// resolveTarget loads the named selection, or the active one when the
// name is empty.
func resolveTarget(app *App, nameOrIndex string) (*selection.Selection, error) {
	if nameOrIndex == "" {
		active := app.Selections.ActiveName()
		if active == "" {
			return nil, fmt.Errorf("%w; run: papers selection list", selection.ErrNoActiveSelection)
		}
		return app.Selections.Load(active)
	}
	name, err := app.Selections.Resolve(nameOrIndex)
	if err != nil {
		return nil, err
	}
	return app.Selections.Load(name)
}

func newSelectionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [name-or-index]",
		Short: "Show a selection's entries",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(false)
			if err != nil {
				return err
			}
			defer app.Close()

			target := ""
			if len(args) > 0 {
				target = args[0]
			}
			sel, err := resolveTarget(app, target)
			if err != nil {
				return err
			}
			fmt.Print(render.Selection(sel, sel.Name == app.Selections.ActiveName()))
			return nil
		},
	}
}

func newSelectionAddCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "add <key|doi|work-id|title>",
		Short: "Resolve a paper and add it to a selection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(false)
			if err != nil {
				return err
			}
			defer app.Close()

			sel, err := resolveTarget(app, target)
			if err != nil {
				return err
			}
			input := args[0]
			entry, err := app.Resolver.Resolve(cmd.Context(), input)
			if err != nil {
				return err
			}
			for i := range sel.Entries {
				e := &sel.Entries[i]
				dup := entry.ZoteroKey != nil && selection.EntryMatchesKey(e, *entry.ZoteroKey) ||
					entry.OpenAlexID != nil && selection.EntryMatchesOpenAlex(e, *entry.OpenAlexID) ||
					entry.DOI != nil && selection.EntryMatchesDOI(e, *entry.DOI)
				if dup {
					fmt.Println("already in selection")
					return nil
				}
			}
			sel.Entries = append(sel.Entries, *entry)
			if err := app.Selections.Save(sel); err != nil {
				return err
			}
			title := input
			if entry.Title != nil {
				title = *entry.Title
			}
			fmt.Printf("added %q to %q\n", title, sel.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "selection", "", "target selection name or index (default: active)")
	return cmd
}

func newSelectionRemoveCmd() *cobra.Command {
	var target string
	cmd := &cobra.Command{
		Use:   "remove <key|doi|work-id|title>",
		Short: "Remove matching entries from a selection",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := openApp(false)
			if err != nil {
				return err
			}
			defer app.Close()

			sel, err := resolveTarget(app, target)
			if err != nil {
				return err
			}
			kept := sel.Entries[:0]
			removed := 0
			for i := range sel.Entries {
				if selection.EntryMatchesRemoveInput(&sel.Entries[i], args[0]) {
					removed++
					continue
				}
				kept = append(kept, sel.Entries[i])
			}
			if removed == 0 {
				return selection.ErrItemNotFound
			}
			sel.Entries = kept
			if err := app.Selections.Save(sel); err != nil {
				return err
			}
			fmt.Printf("removed %d entries from %q\n", removed, sel.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&target, "selection", "", "target selection name or index (default: active)")
	return cmd
}
