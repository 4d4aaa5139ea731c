package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"evalgo.org/mdm/internal/integrity"
)

var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Catalog integrity checking and repair",
	Long: `Scan the catalog for broken cross-document links and duplicate codes,
then plan and execute repairs.

Detected issues:
  dangling_reference  a field references a deleted document
  family_desync       a category and a family disagree about their link
  closure_drift       denormalized attributes differ from the attribute groups
  duplicate_code      two documents of one type share a code`,
}

var integrityScanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for integrity issues",
	RunE:  runIntegrityScan,
}

var integrityPlanCmd = &cobra.Command{
	Use:   "plan",
	Short: "Create a repair plan",
	Long:  `Generate a repair plan for the detected integrity issues without changing anything`,
	RunE:  runIntegrityPlan,
}

var integrityRepairCmd = &cobra.Command{
	Use:   "repair",
	Short: "Execute repair operations",
	Long:  `Build a fresh repair plan and execute it`,
	RunE:  runIntegrityRepair,
}

func init() {
	integrityScanCmd.Flags().Bool("json", false, "Output results as JSON")
	integrityPlanCmd.Flags().Bool("json", false, "Output plan as JSON")

	integrityRepairCmd.Flags().Bool("dry-run", true, "Perform a dry-run without making actual changes")
	integrityRepairCmd.Flags().Bool("yes", false, "Skip confirmation prompt")

	integrityCmd.AddCommand(integrityScanCmd)
	integrityCmd.AddCommand(integrityPlanCmd)
	integrityCmd.AddCommand(integrityRepairCmd)
}

func openIntegrity(ctx context.Context) (*integrity.Service, func(), error) {
	services, cleanup, err := openServices(ctx)
	if err != nil {
		return nil, nil, err
	}
	return services.Integrity, func() {
		cleanup()
		_ = services.Storage.Close()
	}, nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func runIntegrityScan(cmd *cobra.Command, args []string) error {
	outputJSON, _ := cmd.Flags().GetBool("json")
	ctx := cmd.Context()

	svc, closeFn, err := openIntegrity(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	report, err := svc.Scan(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if outputJSON {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		fmt.Println("🔍 Scanning for Integrity Issues")
		fmt.Println()
		fmt.Printf("Scan ID:           %s\n", report.ID)
		fmt.Printf("Duration:          %v\n", report.Duration)
		fmt.Printf("Documents Scanned: %d\n", report.DocumentsScanned)
		fmt.Printf("Issues Found:      %d\n", report.Summary.TotalIssues)
		fmt.Println()

		scoreColor := getScoreColor(report.Summary.HealthScore)
		fmt.Printf("Health Score:      %s%d/100%s\n", scoreColor, report.Summary.HealthScore, colorReset)
		fmt.Println()

		if len(report.Summary.ByType) > 0 {
			fmt.Println("Issues by Type:")
			for issueType, count := range report.Summary.ByType {
				fmt.Printf("  %s: %d\n", issueType, count)
			}
			fmt.Println()
		}

		if len(report.Issues) > 0 {
			fmt.Println("Detailed Issues:")
			printIssues(report.Issues, 10)
			fmt.Println()
			fmt.Println("Next Steps:")
			fmt.Println("  1. Review the issues above")
			fmt.Println("  2. Run 'mdm integrity plan' to see the repair plan")
			fmt.Println("  3. Execute it with 'mdm integrity repair --dry-run=false'")
			fmt.Println()
		} else {
			fmt.Println("✅ No integrity issues found!")
			fmt.Println()
		}
	}

	if report.Summary.TotalIssues > 0 {
		return fmt.Errorf("found %d integrity issues", report.Summary.TotalIssues)
	}
	return nil
}

func printIssues(issues []integrity.Issue, max int) {
	for i, issue := range issues {
		if i >= max {
			fmt.Printf("  ... and %d more issues\n", len(issues)-max)
			break
		}
		severityColor := getSeverityColor(issue.Severity)
		fmt.Printf("\n  Issue #%d:\n", i+1)
		fmt.Printf("    Type:        %s\n", issue.Type)
		fmt.Printf("    Severity:    %s%s%s\n", severityColor, issue.Severity, colorReset)
		fmt.Printf("    Document:    %s (%s)\n", issue.DocumentID, issue.DocumentType)
		if issue.Field != "" {
			fmt.Printf("    Field:       %s = %s\n", issue.Field, issue.Value)
		}
		fmt.Printf("    Description: %s\n", issue.Description)
	}
}

func printOperations(ops []integrity.RepairOperation) {
	for i, op := range ops {
		target := op.DocumentID
		if op.Field != "" {
			target = fmt.Sprintf("%s.%s", op.DocumentID, op.Field)
		}
		if op.Value != "" {
			fmt.Printf("  %d. %s %s -> %s\n", i+1, op.Type, target, op.Value)
		} else {
			fmt.Printf("  %d. %s %s\n", i+1, op.Type, target)
		}
	}
}

func runIntegrityPlan(cmd *cobra.Command, args []string) error {
	outputJSON, _ := cmd.Flags().GetBool("json")
	ctx := cmd.Context()

	svc, closeFn, err := openIntegrity(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	plan, report, err := svc.CreateRepairPlan(ctx)
	if err != nil {
		return fmt.Errorf("failed to create repair plan: %w", err)
	}

	if outputJSON {
		return printJSON(plan)
	}

	fmt.Println("📋 Repair Plan")
	fmt.Println()
	fmt.Printf("Plan ID:     %s\n", plan.ID)
	fmt.Printf("Scan ID:     %s\n", plan.ScanID)
	fmt.Printf("Issues:      %d\n", report.Summary.TotalIssues)
	fmt.Printf("Operations:  %d\n", len(plan.Operations))
	fmt.Println()

	if len(plan.Operations) > 0 {
		fmt.Println("Operations:")
		printOperations(plan.Operations)
		fmt.Println()
	}
	if len(plan.Unresolved) > 0 {
		fmt.Printf("%sUnresolved issues (manual action needed):%s\n", colorOrange, colorReset)
		printIssues(plan.Unresolved, len(plan.Unresolved))
		fmt.Println()
	}
	if len(plan.Operations) == 0 && len(plan.Unresolved) == 0 {
		fmt.Println("✅ No repairs needed!")
	}
	return nil
}

func runIntegrityRepair(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	skipConfirm, _ := cmd.Flags().GetBool("yes")
	ctx := cmd.Context()

	if dryRun {
		fmt.Println("🔍 Dry-Run Mode: Simulating Repairs")
	} else {
		fmt.Println("⚠️  Live Mode: Executing Repairs")
	}
	fmt.Println()

	svc, closeFn, err := openIntegrity(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	fmt.Println("Creating repair plan...")
	plan, _, err := svc.CreateRepairPlan(ctx)
	if err != nil {
		return fmt.Errorf("failed to create repair plan: %w", err)
	}
	fmt.Printf("Found %d operations to execute\n\n", len(plan.Operations))

	if len(plan.Operations) == 0 {
		fmt.Println("✅ No repairs needed!")
		return nil
	}

	if !dryRun && !skipConfirm {
		fmt.Printf("⚠️  WARNING: This will modify %d documents in the catalog!\n", len(plan.Operations))
		fmt.Print("Are you sure you want to continue? (yes/no): ")
		response, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(response) != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
		fmt.Println()
	}

	result := svc.ExecutePlan(ctx, plan, dryRun)

	fmt.Printf("Plan ID:           %s\n", result.PlanID)
	fmt.Printf("Duration:          %v\n", result.EndTime.Sub(result.StartTime))
	fmt.Printf("Operations:        %d total\n", len(result.Operations))
	fmt.Printf("Successful:        %s%d%s\n", colorGreen, result.SuccessCount, colorReset)
	fmt.Printf("Failed:            %s%d%s\n", colorRed, result.FailureCount, colorReset)
	fmt.Printf("Dry-Run:           %v\n", result.DryRun)
	fmt.Println()

	if result.FailureCount > 0 {
		fmt.Println("Failed Operations:")
		for i, opResult := range result.Operations {
			if !opResult.Success {
				fmt.Printf("  %d. %s %s - %s\n", i+1, opResult.Operation.Type, opResult.Operation.DocumentID, opResult.Error)
			}
		}
		fmt.Println()
	}

	switch {
	case result.DryRun:
		fmt.Println("✅ Dry-run completed successfully!")
		fmt.Println("Run with --dry-run=false to execute actual repairs.")
	case result.FailureCount > 0:
		return fmt.Errorf("%d operations failed", result.FailureCount)
	default:
		fmt.Println("✅ All repairs completed successfully!")
	}
	return nil
}

// Color codes for terminal output
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorGreen  = "\033[32m"
	colorOrange = "\033[38;5;208m"
)

// getScoreColor returns the appropriate color for a health score
func getScoreColor(score int) string {
	switch {
	case score >= 90:
		return colorGreen
	case score >= 70:
		return colorYellow
	case score >= 50:
		return colorOrange
	default:
		return colorRed
	}
}

// getSeverityColor returns the appropriate color for a severity level
func getSeverityColor(severity integrity.Severity) string {
	switch severity {
	case integrity.SeverityHigh:
		return colorRed
	case integrity.SeverityMedium:
		return colorYellow
	case integrity.SeverityLow:
		return colorGreen
	default:
		return colorReset
	}
}
