package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/mentor-ranker/internal/logger"
	"github.com/spigell/mentor-ranker/internal/matching"
	"github.com/spigell/mentor-ranker/internal/profile"
	"github.com/spigell/mentor-ranker/internal/store"
)

const (
	PromptBack = "back"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank mentors for a student",
	Run: func(cmd *cobra.Command, _ []string) {
		rank(cmd)
	},
}

func init() {
	rootCmd.AddCommand(rankCmd)

	rankCmd.Flags().StringP("student", "s", "", "student profile id")
	rankCmd.Flags().IntP("limit", "n", 0, "maximum number of mentors to return (default 5, at most 50)")
	rankCmd.Flags().BoolP("include-connected", "c", false, "keep mentors the student already has a pending or accepted connection with")
	rankCmd.Flags().BoolP("interactive", "i", false, "choose mentors from the shortlist and send connection requests")

	rankCmd.MarkFlagRequired("student")

	viper.BindPFlag("ranking.include-connected", rankCmd.Flags().Lookup("include-connected"))
}

// rank is the main command for the cli.
func rank(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	defer logger.Sync()

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	application, err := newApplication(ctx, config, logger)
	if err != nil {
		logger.Fatal("initializing", zap.Error(err))
	}
	defer application.Close()

	studentID, _ := cmd.Flags().GetString("student")

	var limit *int
	if cmd.Flags().Changed("limit") {
		n, _ := cmd.Flags().GetInt("limit")
		limit = &n
	}

	shortlist, err := application.service.RankMentors(ctx, studentID, limit)
	if err != nil {
		logger.Fatal("ranking mentors", zap.String("student_id", studentID), zap.Error(err))
	}

	if len(shortlist.Matches) == 0 {
		logger.Info("exiting", zap.String("reason", "no mentors left after filters"))
		return
	}

	logger.Info("mentors ranked",
		zap.String("student", shortlist.Student.FullName),
		zap.String("source", string(shortlist.Source)),
		zap.Int("count", len(shortlist.Matches)),
	)
	for i, m := range shortlist.Matches {
		logger.Info(fmt.Sprintf("#%d %s", i+1, m.Mentor.FullName),
			zap.String("mentor_id", m.Mentor.ID()),
			zap.Int("score", m.Score),
			zap.String("reason", m.Reason),
		)
	}

	if interactive, _ := cmd.Flags().GetBool("interactive"); !interactive {
		return
	}

	if err := manualConnect(ctx, application.service, logger, shortlist); err != nil {
		logger.Fatal("exiting", zap.Error(err))
	}
}

func manualConnect(ctx context.Context, service *matching.Service, logger *zap.Logger, shortlist matching.Shortlist) error {
	matches := shortlist.Matches

	for len(matches) > 0 {
		items := make([]string, 0, len(matches)+1)
		for _, m := range matches {
			items = append(items, matchLabel(m))
		}

		mentorPrompt := promptui.Select{
			Label: "Choose a mentor and press ENTER",
			Items: append(items, PromptBack),
		}

		idx, selected, err := mentorPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		mentor := matches[idx].Mentor

		messagePrompt := promptui.Prompt{
			Label:   fmt.Sprintf("Message to %s (empty for default)", mentor.FullName),
			Default: "",
		}
		message, err := messagePrompt.Run()
		if err != nil {
			return err
		}

		conn, err := service.Connect(ctx, shortlist.Student.ID(), mentor.ID(), message)
		switch {
		case errors.Is(err, store.ErrConnectionExists):
			logger.Warn("connection already requested", zap.String("mentor_id", mentor.ID()))
		case err != nil:
			return err
		default:
			logger.Info("connection requested",
				zap.String("connection_id", conn.ID),
				zap.String("mentor", mentor.FullName),
			)
		}

		matches = append(matches[:idx:idx], matches[idx+1:]...)
	}

	logger.Info("exiting", zap.String("reason", "no mentors left in the shortlist"))
	return nil
}

func matchLabel(m profile.Match) string {
	parts := []string{m.Mentor.FullName}
	if title, ok := m.Mentor.JobTitle.Get(); ok {
		parts = append(parts, title)
	}
	if company, ok := m.Mentor.Company.Get(); ok {
		parts = append(parts, company)
	}
	return fmt.Sprintf("[%3d] %s: %s", m.Score, strings.Join(parts, " / "), m.Reason)
}
