package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"standline/internal/config"
	"standline/internal/db"
	"standline/internal/domain"
	"standline/internal/engine"
	"standline/internal/migrate"
	"standline/internal/predict"
	"standline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "sl",
	Short: "Standline CLI",
	Long: `Standline evaluates project portfolios against weighted compliance standards.
- Workspace: the .standline directory holding the database; standline.yml configures the predictor, scheduler, and webhooks.
- Standards: weighted requirement sets made of scorable criteria (binary, partial, or scale).
- Records: evidence submitted per criterion, reviewed to approved or rejected.
- Evaluations: weighted scores per (project, standard) with history, trend, and alerts.
- Workflows: step templates instanced per entity; overdue steps escalate.
- Rules: declarative condition -> action pairs run against records.
- Schedules: recurring evaluations swept with 'sl sweep schedules'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
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
	viper.SetEnvPrefix("STANDLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (debug, info, warn, error)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func registerCommands() {
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(standardCmd())
	rootCmd.AddCommand(criterionCmd())
	rootCmd.AddCommand(recordCmd())
	rootCmd.AddCommand(evaluateCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(workflowCmd())
	rootCmd.AddCommand(ruleCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(riskCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var id, name, owner string
	var members []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" || owner == "" {
				return fmt.Errorf("--name and --owner required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p := domain.Project{
					ID:        orNewID(id),
					Name:      name,
					OwnerID:   owner,
					Status:    "active",
					MemberIDs: members,
					CreatedAt: e.Timestamp(),
				}
				if err := e.Repo.InsertProject(ctx, p); err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "project id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "project name")
	cmd.Flags().StringVar(&owner, "owner", "", "owner actor id")
	cmd.Flags().StringSliceVar(&members, "member", nil, "member actor id (repeatable)")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListProjects(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Owner", "Status"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Name, p.OwnerID, p.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.Repo.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(p)
			})
		},
	}
}

func standardCmd() *cobra.Command {
	std := &cobra.Command{Use: "standard", Short: "Manage compliance standards"}
	std.AddCommand(standardCreateCmd())
	std.AddCommand(standardListCmd())
	std.AddCommand(standardShowCmd())
	return std
}

func standardCreateCmd() *cobra.Command {
	var id, name, desc, category, level string
	var weight float64
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a standard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			if weight <= 0 || weight > 1 {
				return fmt.Errorf("--weight must be within (0,1]")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				now := e.Timestamp()
				s := domain.Standard{
					ID:          orNewID(id),
					Name:        name,
					Description: desc,
					Category:    category,
					Level:       level,
					Weight:      weight,
					Version:     1,
					IsActive:    true,
					CreatedAt:   now,
					UpdatedAt:   now,
				}
				if err := e.Repo.InsertStandard(ctx, s); err != nil {
					return err
				}
				return printJSON(s)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "standard id (generated when empty)")
	cmd.Flags().StringVar(&name, "name", "", "standard name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&category, "category", "project", "portfolio, program, or project")
	cmd.Flags().StringVar(&level, "level", "foundational", "foundational, intermediate, or advanced")
	cmd.Flags().Float64Var(&weight, "weight", 1.0, "weight within (0,1]")
	return cmd
}

func standardListCmd() *cobra.Command {
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List standards",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListStandards(ctx, activeOnly)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Category", "Level", "Weight", "Version", "Active"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.Name, s.Category, s.Level, s.Weight, s.Version, s.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active standards")
	return cmd
}

func standardShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <standard-id>",
		Short: "Show a standard with its criteria",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.Repo.GetStandard(ctx, args[0])
				if err != nil {
					return err
				}
				criteria, err := e.Repo.ListCriteria(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"standard": s, "criteria": criteria})
			})
		},
	}
}

func criterionCmd() *cobra.Command {
	crit := &cobra.Command{Use: "criterion", Short: "Manage standard criteria"}
	crit.AddCommand(criterionAddCmd())
	crit.AddCommand(criterionListCmd())
	return crit
}

func criterionAddCmd() *cobra.Command {
	var id, standardID, name, desc, evidenceType, method string
	var maxScore float64
	var mandatory bool
	var order int
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a criterion to a standard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if standardID == "" || name == "" {
				return fmt.Errorf("--standard and --name required")
			}
			if maxScore <= 0 {
				return fmt.Errorf("--max-score must be positive")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.Repo.GetStandard(ctx, standardID); err != nil {
					return err
				}
				c := domain.Criterion{
					ID:            orNewID(id),
					StandardID:    standardID,
					Name:          name,
					Description:   desc,
					EvidenceType:  evidenceType,
					ScoringMethod: method,
					MaxScore:      maxScore,
					IsMandatory:   mandatory,
					Order:         order,
					CreatedAt:     e.Timestamp(),
				}
				if err := e.Repo.InsertCriterion(ctx, c); err != nil {
					return err
				}
				return printJSON(c)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "criterion id (generated when empty)")
	cmd.Flags().StringVar(&standardID, "standard", "", "standard id")
	cmd.Flags().StringVar(&name, "name", "", "criterion name")
	cmd.Flags().StringVar(&desc, "description", "", "description")
	cmd.Flags().StringVar(&evidenceType, "evidence-type", "document", "document, link, text, or file")
	cmd.Flags().StringVar(&method, "scoring-method", "binary", "binary, partial, or scale")
	cmd.Flags().Float64Var(&maxScore, "max-score", 10, "maximum score")
	cmd.Flags().BoolVar(&mandatory, "mandatory", false, "mandatory criterion")
	cmd.Flags().IntVar(&order, "order", 0, "display order")
	return cmd
}

func criterionListCmd() *cobra.Command {
	var standardID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a standard's criteria",
		RunE: func(cmd *cobra.Command, args []string) error {
			if standardID == "" {
				return fmt.Errorf("--standard required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListCriteria(ctx, standardID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Evidence", "Method", "Max", "Mandatory"})
				for _, c := range items {
					tw.AppendRow(table.Row{c.ID, c.Name, c.EvidenceType, c.ScoringMethod, c.MaxScore, c.IsMandatory})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&standardID, "standard", "", "standard id")
	return cmd
}

func recordCmd() *cobra.Command {
	rec := &cobra.Command{Use: "record", Short: "Submit and review evidence records"}
	rec.AddCommand(recordSubmitCmd())
	rec.AddCommand(recordListCmd())
	rec.AddCommand(recordReviewCmd())
	return rec
}

func recordSubmitCmd() *cobra.Command {
	var projectID, standardID, criterionID, status, evidence, evidenceURL string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit evidence for a criterion",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" || standardID == "" || criterionID == "" {
				return fmt.Errorf("--project, --standard, and --criterion required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rec, err := e.SubmitRecord(ctx, engine.SubmitRecordOptions{
					ProjectID:   projectID,
					StandardID:  standardID,
					CriterionID: criterionID,
					Status:      status,
					Evidence:    evidence,
					EvidenceURL: evidenceURL,
					ActorID:     viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSON(rec)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&standardID, "standard", "", "standard id")
	cmd.Flags().StringVar(&criterionID, "criterion", "", "criterion id")
	cmd.Flags().StringVar(&status, "status", "", "record status (defaults to submitted)")
	cmd.Flags().StringVar(&evidence, "evidence", "", "evidence text")
	cmd.Flags().StringVar(&evidenceURL, "evidence-url", "", "evidence URL")
	return cmd
}

func recordListCmd() *cobra.Command {
	var projectID, standardID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records for a project and standard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" || standardID == "" {
				return fmt.Errorf("--project and --standard required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListRecords(ctx, projectID, standardID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Criterion", "Status", "Score", "Submitted By"})
				for _, r := range items {
					tw.AppendRow(table.Row{r.ID, r.CriterionID, r.Status, r.Score, r.SubmittedBy})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&standardID, "standard", "", "standard id")
	return cmd
}

func recordReviewCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "review <record-id>",
		Short: "Approve or reject a submitted record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rec, err := e.ReviewRecord(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSON(rec)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "approved", "approved or rejected")
	return cmd
}

func evaluateCmd() *cobra.Command {
	var projectID, standardID, notes string
	var batch []string
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate projects against a standard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if standardID == "" {
				return fmt.Errorf("--standard required")
			}
			actorID := viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if len(batch) > 0 {
					results, err := e.BatchEvaluate(ctx, batch, standardID, actorID)
					if err != nil {
						return err
					}
					if viper.GetBool("json") {
						return printJSON(results)
					}
					tw := table.NewWriter()
					tw.SetOutputMirror(os.Stdout)
					tw.AppendHeader(table.Row{"Project", "Score", "Status"})
					for _, r := range results {
						tw.AppendRow(table.Row{r.ProjectID, r.OverallScore, r.Status})
					}
					tw.Render()
					return nil
				}
				if projectID == "" {
					return fmt.Errorf("--project or --batch required")
				}
				result, err := e.Evaluate(ctx, projectID, standardID, actorID, notes)
				if err != nil {
					return err
				}
				alerts, err := e.AlertsFor(ctx, result)
				if err != nil {
					return err
				}
				if err := e.FanOutAlerts(ctx, result, alerts); err != nil {
					return err
				}
				return printJSON(map[string]any{"result": result, "alerts": alerts})
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&standardID, "standard", "", "standard id")
	cmd.Flags().StringVar(&notes, "notes", "", "evaluation notes")
	cmd.Flags().StringSliceVar(&batch, "batch", nil, "project id for batch evaluation (repeatable)")
	return cmd
}

func historyCmd() *cobra.Command {
	var projectID, standardID string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show evaluation history with trend",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" || standardID == "" {
				return fmt.Errorf("--project and --standard required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				h, err := e.EvaluationHistory(ctx, projectID, standardID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(h)
				}
				fmt.Printf("Trend: %s  Level: %s  Average: %.2f\n", h.Trend, h.Level, h.Average)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Evaluated At", "Score", "Evaluator"})
				for _, ev := range h.Evaluations {
					tw.AppendRow(table.Row{ev.EvaluatedAt, ev.OverallScore, ev.EvaluatorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&standardID, "standard", "", "standard id")
	return cmd
}

func statsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <project-id>",
		Short: "Show a project's compliance statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				stats, err := e.ProjectStatistics(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(stats)
			})
		},
	}
	return cmd
}

func workflowCmd() *cobra.Command {
	wf := &cobra.Command{Use: "workflow", Short: "Manage workflows and instances"}
	wf.AddCommand(workflowCreateCmd())
	wf.AddCommand(workflowListCmd())
	wf.AddCommand(workflowShowCmd())
	wf.AddCommand(workflowStartCmd())
	wf.AddCommand(workflowInstancesCmd())
	wf.AddCommand(workflowCompleteCmd())
	wf.AddCommand(workflowEscalateCmd())
	wf.AddCommand(workflowSetStatusCmd("pause", "paused", "Pause an active instance"))
	wf.AddCommand(workflowSetStatusCmd("resume", "active", "Resume a paused or escalated instance"))
	wf.AddCommand(workflowSetStatusCmd("cancel", "cancelled", "Cancel a paused instance"))
	return wf
}

func workflowCreateCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workflow template from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				return fmt.Errorf("--file required")
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return err
			}
			var w domain.Workflow
			if err := json.Unmarshal(data, &w); err != nil {
				return fmt.Errorf("parse workflow: %w", err)
			}
			if w.Name == "" || len(w.Steps) == 0 {
				return fmt.Errorf("workflow needs a name and at least one step")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w.ID = orNewID(w.ID)
				w.IsActive = true
				w.CreatedAt = e.Timestamp()
				for i := range w.Steps {
					w.Steps[i].ID = orNewID(w.Steps[i].ID)
					w.Steps[i].WorkflowID = w.ID
				}
				if err := e.Repo.InsertWorkflow(ctx, w); err != nil {
					return err
				}
				created, err := e.Repo.GetWorkflow(ctx, w.ID)
				if err != nil {
					return err
				}
				return printJSON(created)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "workflow definition JSON file")
	return cmd
}

func workflowListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workflow templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListWorkflows(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Trigger", "Active"})
				for _, w := range items {
					tw.AppendRow(table.Row{w.ID, w.Name, w.TriggerType, w.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func workflowShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <workflow-id>",
		Short: "Show a workflow template with steps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.Repo.GetWorkflow(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(w)
			})
		},
	}
}

func workflowStartCmd() *cobra.Command {
	var entityID string
	cmd := &cobra.Command{
		Use:   "start <workflow-id>",
		Short: "Start a workflow instance for an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if entityID == "" {
				return fmt.Errorf("--entity required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				instance, err := e.StartWorkflow(ctx, args[0], entityID, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSON(instance)
			})
		},
	}
	cmd.Flags().StringVar(&entityID, "entity", "", "entity id the instance tracks")
	return cmd
}

func workflowInstancesCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "instances",
		Short: "List workflow instances",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListInstances(ctx, status)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Workflow", "Entity", "Status", "Assignee", "Due"})
				for _, in := range items {
					assignee := ""
					if in.CurrentAssignee != nil {
						assignee = *in.CurrentAssignee
					}
					due := ""
					if in.NextDueDate != nil {
						due = *in.NextDueDate
					}
					tw.AppendRow(table.Row{in.ID, in.WorkflowID, in.EntityID, in.Status, assignee, due})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status filter")
	return cmd
}

func workflowCompleteCmd() *cobra.Command {
	var stepID, notes string
	cmd := &cobra.Command{
		Use:   "complete <instance-id>",
		Short: "Complete a step and advance the instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if stepID == "" {
				return fmt.Errorf("--step required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				instance, err := e.CompleteStep(ctx, args[0], stepID, viper.GetString("actor-id"), notes)
				if err != nil {
					return err
				}
				return printJSON(instance)
			})
		},
	}
	cmd.Flags().StringVar(&stepID, "step", "", "step id")
	cmd.Flags().StringVar(&notes, "notes", "", "completion notes")
	return cmd
}

func workflowEscalateCmd() *cobra.Command {
	var stepID, reason string
	cmd := &cobra.Command{
		Use:   "escalate <instance-id>",
		Short: "Escalate a step to its escalation target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if stepID == "" {
				return fmt.Errorf("--step required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				instance, err := e.EscalateStep(ctx, args[0], stepID, viper.GetString("actor-id"), reason)
				if err != nil {
					return err
				}
				return printJSON(instance)
			})
		},
	}
	cmd.Flags().StringVar(&stepID, "step", "", "step id")
	cmd.Flags().StringVar(&reason, "reason", "manual escalation", "escalation reason")
	return cmd
}

func workflowSetStatusCmd(use, status, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <instance-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				instance, err := e.SetInstanceStatus(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSON(instance)
			})
		},
	}
}

func ruleCmd() *cobra.Command {
	rl := &cobra.Command{Use: "rule", Short: "Manage rules"}
	rl.AddCommand(ruleCreateCmd())
	rl.AddCommand(ruleListCmd())
	rl.AddCommand(ruleShowCmd())
	rl.AddCommand(ruleUpdateCmd())
	rl.AddCommand(ruleTestCmd())
	rl.AddCommand(ruleRunCmd())
	return rl
}

func ruleFlags(cmd *cobra.Command, name, desc, target, condition, action *string, inactive *bool) {
	cmd.Flags().StringVar(name, "name", "", "rule name")
	cmd.Flags().StringVar(desc, "description", "", "description")
	cmd.Flags().StringVar(target, "target", "compliance_record", "target entity kind")
	cmd.Flags().StringVar(condition, "condition", "", "condition JSON")
	cmd.Flags().StringVar(action, "action", "", "action JSON")
	cmd.Flags().BoolVar(inactive, "inactive", false, "create disabled")
}

func ruleCreateCmd() *cobra.Command {
	var name, desc, target, condition, action string
	var inactive bool
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				created, warnings, err := e.CreateRule(ctx, domain.Rule{
					Name:          name,
					Description:   desc,
					TargetEntity:  target,
					ConditionJSON: condition,
					ActionJSON:    action,
					IsActive:      !inactive,
				}, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"rule": created, "warnings": warnings})
			})
		},
	}
	ruleFlags(cmd, &name, &desc, &target, &condition, &action, &inactive)
	return cmd
}

func ruleListCmd() *cobra.Command {
	var target string
	var activeOnly bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListRules(ctx, target, activeOnly)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Target", "Version", "Active"})
				for _, r := range items {
					tw.AppendRow(table.Row{r.ID, r.Name, r.TargetEntity, r.Version, r.IsActive})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&target, "target", "", "target entity filter")
	cmd.Flags().BoolVar(&activeOnly, "active", false, "only active rules")
	return cmd
}

func ruleShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <rule-id>",
		Short: "Show a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rl, err := e.Repo.GetRule(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(rl)
			})
		},
	}
}

func ruleUpdateCmd() *cobra.Command {
	var name, desc, target, condition, action string
	var inactive bool
	cmd := &cobra.Command{
		Use:   "update <rule-id>",
		Short: "Replace a rule definition (bumps version)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				updated, warnings, err := e.UpdateRule(ctx, args[0], domain.Rule{
					Name:          name,
					Description:   desc,
					TargetEntity:  target,
					ConditionJSON: condition,
					ActionJSON:    action,
					IsActive:      !inactive,
				}, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSON(map[string]any{"rule": updated, "warnings": warnings})
			})
		},
	}
	ruleFlags(cmd, &name, &desc, &target, &condition, &action, &inactive)
	return cmd
}

func ruleTestCmd() *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "test <rule-id>",
		Short: "Dry-run a rule against test data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var record map[string]any
			if err := json.Unmarshal([]byte(data), &record); err != nil {
				return fmt.Errorf("parse --data: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := e.TestRule(ctx, args[0], record)
				if err != nil {
					return err
				}
				return printJSON(out)
			})
		},
	}
	cmd.Flags().StringVar(&data, "data", "{}", "test record JSON")
	return cmd
}

func ruleRunCmd() *cobra.Command {
	var target, data string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run all active rules for an entity kind against a record",
		RunE: func(cmd *cobra.Command, args []string) error {
			var record map[string]any
			if err := json.Unmarshal([]byte(data), &record); err != nil {
				return fmt.Errorf("parse --data: %w", err)
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				applied, err := e.RunRules(ctx, target, record, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSON(applied)
			})
		},
	}
	cmd.Flags().StringVar(&target, "target", "compliance_record", "target entity kind")
	cmd.Flags().StringVar(&data, "data", "{}", "record JSON")
	return cmd
}

func scheduleCmd() *cobra.Command {
	sched := &cobra.Command{Use: "schedule", Short: "Manage evaluation schedules"}
	sched.AddCommand(scheduleCreateCmd())
	sched.AddCommand(scheduleListCmd())
	return sched
}

func scheduleCreateCmd() *cobra.Command {
	var id, projectID, standardID, nextRunAt string
	var frequencyDays int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a recurring evaluation schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" || standardID == "" {
				return fmt.Errorf("--project and --standard required")
			}
			if frequencyDays <= 0 {
				return fmt.Errorf("--frequency-days must be positive")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if _, err := e.Repo.GetProject(ctx, projectID); err != nil {
					return err
				}
				if _, err := e.Repo.GetStandard(ctx, standardID); err != nil {
					return err
				}
				if nextRunAt == "" {
					nextRunAt = e.Timestamp()
				}
				s := domain.ComplianceSchedule{
					ID:            orNewID(id),
					ProjectID:     projectID,
					StandardID:    standardID,
					FrequencyDays: frequencyDays,
					NextRunAt:     nextRunAt,
					IsActive:      true,
					CreatedAt:     e.Timestamp(),
				}
				if err := e.Repo.InsertSchedule(ctx, s); err != nil {
					return err
				}
				return printJSON(s)
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "schedule id (generated when empty)")
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&standardID, "standard", "", "standard id")
	cmd.Flags().IntVar(&frequencyDays, "frequency-days", 30, "days between evaluations")
	cmd.Flags().StringVar(&nextRunAt, "next-run-at", "", "first run (RFC 3339, defaults to now)")
	return cmd
}

func scheduleListCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListSchedules(ctx, projectID)
				if err != nil {
					return err
				}
				return printJSON(items)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func sweepCmd() *cobra.Command {
	sweep := &cobra.Command{Use: "sweep", Short: "Run maintenance sweeps"}
	sweep.AddCommand(&cobra.Command{
		Use:   "schedules",
		Short: "Run all due evaluation schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				report, err := e.SweepDueSchedules(ctx)
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	})
	sweep.AddCommand(&cobra.Command{
		Use:   "workflows",
		Short: "Escalate overdue workflow steps",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				report, err := e.SweepOverdueSteps(ctx)
				if err != nil {
					return err
				}
				return printJSON(report)
			})
		},
	})
	return sweep
}

func riskCmd() *cobra.Command {
	var projectID, riskID, category, description string
	var probability, impact float64
	cmd := &cobra.Command{
		Use:   "risk",
		Short: "Predict risk score and severity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := e.Predictor.PredictRisk(ctx, predict.Input{
					ProjectID:   projectID,
					RiskID:      riskID,
					Category:    category,
					Probability: probability,
					Impact:      impact,
					Description: description,
				})
				if err != nil {
					return err
				}
				return printJSON(out)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&riskID, "risk", "", "risk id")
	cmd.Flags().StringVar(&category, "category", "", "risk category")
	cmd.Flags().Float64Var(&probability, "probability", 50, "probability 0-100")
	cmd.Flags().Float64Var(&impact, "impact", 50, "impact 0-100")
	cmd.Flags().StringVar(&description, "description", "", "risk description")
	return cmd
}

func logCmd() *cobra.Command {
	log := &cobra.Command{Use: "log", Short: "Event log"}
	var n int
	var cursor int64
	var projectID string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Tail audit events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.EventsAfter(ctx, n, cursor, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + "/" + evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().Int64Var(&cursor, "after", 0, "only events after this id")
	tail.Flags().StringVar(&projectID, "project", "", "project filter")
	log.AddCommand(tail)
	return log
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowLegacyActor bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			logger, err := buildLogger()
			if err != nil {
				return err
			}
			defer logger.Sync()
			e, err := engine.New(conn, cfg, logger)
			if err != nil {
				return err
			}
			authCfg := server.AuthConfig{
				JWTSecret:              os.Getenv("STANDLINE_JWT_SECRET"),
				AllowLegacyActorHeader: allowLegacyActor,
				Logger:                 logger,
			}
			if authCfg.JWTSecret == "" && !allowLegacyActor {
				return fmt.Errorf("STANDLINE_JWT_SECRET is required for bearer auth (or pass --allow-legacy-actor)")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Standline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowLegacyActor, "allow-legacy-actor", false, "accept X-Actor-Id without a token (dev only)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	logger, err := buildLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()
	e, err := engine.New(conn, cfg, logger)
	if err != nil {
		return err
	}
	return fn(ctx, e)
}

func buildLogger() (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	level, err := zapcore.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	zapCfg.Level.SetLevel(level)
	return zapCfg.Build()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func orNewID(id string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	return uuid.New().String()
}
