package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"rapport/internal/config"
	"rapport/internal/domain"
	"rapport/internal/draft"
	"rapport/internal/logging"
	"rapport/internal/persistence"
)

var rootCmd = &cobra.Command{
	Use:   "rapport",
	Short: "Rapport CLI",
	Long: `Rapport drives a group's project report against the report service.
The report stays editable while in draft; sections are saved through a
debounced autosave, and submit flushes pending saves before validating.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("RAPPORT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("project", "", "project id (overrides config)")
	rootCmd.PersistentFlags().String("group", "", "group id (overrides config)")
	rootCmd.PersistentFlags().String("token", "", "bearer token (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("project", rootCmd.PersistentFlags().Lookup("project"))
	_ = viper.BindPFlag("group", rootCmd.PersistentFlags().Lookup("group"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(sectionCmd())
	rootCmd.AddCommand(submitCmd())
	rootCmd.AddCommand(saveCmd())
	rootCmd.AddCommand(statusCmd())
}

// withSession loads config, opens the drafting session, and tears it down.
func withSession(ctx context.Context, fn func(ctx context.Context, s *draft.Session) error) error {
	cfg, err := config.Load(viper.GetString("workspace"))
	if err != nil {
		return err
	}
	token, err := cfg.ResolveToken()
	if err != nil {
		return err
	}
	if t := viper.GetString("token"); t != "" {
		token = t
	}
	projectID := cfg.Project
	if p := viper.GetString("project"); p != "" {
		projectID = p
	}
	groupID := cfg.Group
	if g := viper.GetString("group"); g != "" {
		groupID = g
	}
	client := persistence.New(cfg.Server.BaseURL, token)
	client.OnAuthExpired = func() {
		fmt.Fprintln(os.Stderr, "session expired; sign in again")
	}
	log := logging.New(cfg.Log.Level)
	defer log.Sync()

	session, err := draft.Open(ctx, client, draft.Options{
		ProjectID:     projectID,
		GroupID:       groupID,
		Window:        cfg.Window(),
		CommitTimeout: cfg.CommitTimeout(),
		Logger:        log,
	})
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(ctx, session)
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cmd.AddCommand(configInitCmd())
	cmd.AddCommand(configShowCmd())
	return cmd
}

func configInitCmd() *cobra.Command {
	var project, group string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default rapport.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			return os.WriteFile(path, []byte(config.GenerateDefault(project, group)), 0o644)
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().StringVar(&group, "group", "", "group id")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("group")
	return cmd
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSON(cfg)
		},
	}
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "report", Short: "Manage the group report"}
	cmd.AddCommand(reportShowCmd())
	cmd.AddCommand(reportCreateCmd())
	cmd.AddCommand(reportUpdateCmd())
	return cmd
}

func reportShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the report and its sections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *draft.Session) error {
				rep, ok := s.Report()
				if !ok {
					fmt.Println("no report yet; create one with rapport report create")
					return nil
				}
				if viper.GetBool("json") {
					return printJSON(rep)
				}
				printReportTable(rep)
				printSectionsTable(rep.Sections)
				return nil
			})
		},
	}
}

func reportCreateCmd() *cobra.Command {
	var title, desc string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create the report for this group",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *draft.Session) error {
				rep, err := s.CreateReport(ctx, title, desc)
				if err != nil {
					return err
				}
				return printJSONOr(rep, func() { printReportTable(rep) })
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "report title")
	cmd.Flags().StringVar(&desc, "description", "", "report description")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func reportUpdateCmd() *cobra.Command {
	var title, desc string
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update report title/description",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *draft.Session) error {
				var patch domain.ReportPatch
				if cmd.Flags().Changed("title") {
					patch.Title = &title
				}
				if cmd.Flags().Changed("description") {
					patch.Description = &desc
				}
				rep, err := s.UpdateReport(ctx, patch)
				if err != nil {
					return err
				}
				return printJSONOr(rep, func() { printReportTable(rep) })
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "report title")
	cmd.Flags().StringVar(&desc, "description", "", "report description")
	return cmd
}

func sectionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "section", Short: "Manage report sections"}
	cmd.AddCommand(sectionListCmd())
	cmd.AddCommand(sectionAddCmd())
	cmd.AddCommand(sectionEditCmd())
	cmd.AddCommand(sectionRmCmd())
	return cmd
}

func sectionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sections in report order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *draft.Session) error {
				secs := s.SectionList()
				if viper.GetBool("json") {
					return printJSON(secs)
				}
				printSectionsTable(secs)
				return nil
			})
		},
	}
}

func sectionAddCmd() *cobra.Command {
	var title, content, kind string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a section",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *draft.Session) error {
				sec, err := s.AddSection(ctx, title, content, domain.ContentKind(kind))
				if err != nil {
					return err
				}
				return printJSONOr(sec, func() { printSectionsTable([]domain.Section{sec}) })
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "section title")
	cmd.Flags().StringVar(&content, "content", "", "section content")
	cmd.Flags().StringVar(&kind, "type", string(domain.KindHTML), "content type (html|markdown|plain)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func sectionEditCmd() *cobra.Command {
	var title, content, kind string
	var fromStdin bool
	cmd := &cobra.Command{
		Use:   "edit <section-id>",
		Short: "Edit a section",
		Long: `Edit a section. With --stdin, lines read from standard input stream
through the debounced autosave; everything left pending is flushed on EOF.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *draft.Session) error {
				id := args[0]
				if fromStdin {
					return editFromStdin(ctx, s, id)
				}
				var patch domain.SectionPatch
				if cmd.Flags().Changed("title") {
					patch.Title = &title
				}
				if cmd.Flags().Changed("content") {
					patch.Content = &content
				}
				if cmd.Flags().Changed("type") {
					k := domain.ContentKind(kind)
					patch.Kind = &k
				}
				sec, err := s.UpdateSection(ctx, id, patch, true)
				if err != nil {
					return err
				}
				return printJSONOr(sec, func() { printSectionsTable([]domain.Section{sec}) })
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "section title")
	cmd.Flags().StringVar(&content, "content", "", "section content")
	cmd.Flags().StringVar(&kind, "type", "", "content type (html|markdown|plain)")
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "stream content lines from stdin through the autosave")
	return cmd
}

// editFromStdin grows the section content line by line; each line is a
// debounced edit, so rapid pastes coalesce into few commits.
func editFromStdin(ctx context.Context, s *draft.Session, id string) error {
	var lines []string
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
		content := strings.Join(lines, "\n")
		if _, err := s.UpdateSection(ctx, id, domain.SectionPatch{Content: &content}, false); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	if err := s.SaveNow(ctx); err != nil {
		return err
	}
	st := s.SaveStatus()
	fmt.Printf("saved at %s\n", st.LastSaved.Format("15:04:05"))
	return nil
}

func sectionRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <section-id>",
		Short: "Delete a section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *draft.Session) error {
				return s.DeleteSection(ctx, args[0])
			})
		},
	}
}

func submitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "submit",
		Short: "Submit the report for review",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *draft.Session) error {
				rep, err := s.Submit(ctx)
				if err != nil {
					var blank draft.BlankSectionsError
					if errors.As(err, &blank) {
						return fmt.Errorf("cannot submit; fill in: %s", strings.Join(blank.Titles, ", "))
					}
					return err
				}
				return printJSONOr(rep, func() { printReportTable(rep) })
			})
		},
	}
}

func saveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Flush any pending autosave now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *draft.Session) error {
				return s.SaveNow(ctx)
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show save state and report stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd.Context(), func(ctx context.Context, s *draft.Session) error {
				st := s.SaveStatus()
				stats := s.Stats()
				if viper.GetBool("json") {
					return printJSON(map[string]any{
						"save_state": st.State,
						"last_saved": st.LastSaved,
						"message":    st.Message,
						"can_edit":   s.CanEdit(),
						"can_submit": s.CanSubmit(),
						"stats":      stats,
					})
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendRow(table.Row{"Save state", st.State})
				if !st.LastSaved.IsZero() {
					tw.AppendRow(table.Row{"Last saved", st.LastSaved.Format("2006-01-02 15:04:05")})
				}
				if st.Message != "" {
					tw.AppendRow(table.Row{"Last error", st.Message})
				}
				tw.AppendRow(table.Row{"Can edit", s.CanEdit()})
				tw.AppendRow(table.Row{"Can submit", s.CanSubmit()})
				tw.AppendRow(table.Row{"Sections", stats.Sections})
				tw.AppendRow(table.Row{"Completed", stats.Completed})
				tw.AppendRow(table.Row{"Empty", stats.Empty})
				tw.AppendRow(table.Row{"Words", stats.Words})
				tw.AppendRow(table.Row{"Characters", stats.Characters})
				tw.Render()
				return nil
			})
		},
	}
}

// --- output helpers ---

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printJSONOr(v any, tableFn func()) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	tableFn()
	return nil
}

func printReportTable(rep domain.Report) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"ID", "Title", "Status", "Submitted", "Updated"})
	submitted := ""
	if rep.SubmittedAt != nil {
		submitted = rep.SubmittedAt.Format("2006-01-02 15:04")
	}
	tw.AppendRow(table.Row{rep.ID, rep.Title, rep.Status, submitted, rep.UpdatedAt.Format("2006-01-02 15:04")})
	tw.Render()
}

func printSectionsTable(secs []domain.Section) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Order", "ID", "Title", "Type", "Words"})
	for _, sec := range secs {
		tw.AppendRow(table.Row{sec.Order, sec.ID, sec.Title, sec.Kind, len(strings.Fields(sec.Content))})
	}
	tw.Render()
}
