package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hive-corporation/fraudshield/internal/adapter/handler"
	"github.com/hive-corporation/fraudshield/internal/core/domain"
)

var checkFlags struct {
	kind    string
	image   string
	timeout time.Duration
}

var checkCmd = &cobra.Command{
	Use:   "check [content]",
	Short: "Analyse content with a FraudShield server",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

func init() {
	f := checkCmd.Flags()
	f.StringVar(&checkFlags.kind, "type", "", "Content type: text or url (detected when empty)")
	f.StringVar(&checkFlags.image, "image", "", "Path of an image to analyse instead of text")
	f.DurationVar(&checkFlags.timeout, "timeout", 60*time.Second, "Request timeout")
}

func dial() (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(rootFlags.server, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("error connecting to FraudShield at %s: %w", rootFlags.server, err)
	}
	return conn, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	kind := domain.InputKind(checkFlags.kind)
	var content, fileName string

	if checkFlags.image != "" {
		raw, err := os.ReadFile(checkFlags.image)
		if err != nil {
			return fmt.Errorf("read image: %w", err)
		}
		kind = domain.KindImage
		content = base64.StdEncoding.EncodeToString(raw)
		fileName = filepath.Base(checkFlags.image)
	} else {
		var err error
		if content, err = contentArg(cmd.InOrStdin(), args); err != nil {
			return err
		}
		if kind == "" {
			kind = domain.DetectInputKind(content)
		}
	}

	conn, err := dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), checkFlags.timeout)
	defer cancel()

	resp, err := handler.NewDetectorClient(conn).Analyze(ctx, kind, content, fileName)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	printDetection(cmd.OutOrStdout(), resp)
	if resp.IsFraudulent {
		return fmt.Errorf("content flagged as fraudulent")
	}
	return nil
}
