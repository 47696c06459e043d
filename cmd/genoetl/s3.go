package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"genoetl/internal/objstore/s3"
)

func (a *app) s3Client(cmd *cobra.Command, bucket string) (*s3.Client, error) {
	c := a.cfg.S3
	if bucket != "" {
		c.Bucket = bucket
	}
	return s3.New(cmd.Context(), s3.Config{
		Bucket:          c.Bucket,
		Prefix:          c.Prefix,
		Region:          c.Region,
		Endpoint:        c.Endpoint,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
	}, a.log)
}

func newS3PushCmd(a *app) *cobra.Command {
	var localDir, prefix, bucket string
	cmd := &cobra.Command{
		Use:   "s3-push",
		Short: "Upload the processed outputs to S3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("prefix") && a.cfg.S3.Prefix != "" {
				prefix = a.cfg.S3.Prefix
			}
			c, err := a.s3Client(cmd, bucket)
			if err != nil {
				return err
			}
			n, err := c.Push(cmd.Context(), localDir, prefix)
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d files to %s\n", n, prefix)
			return err
		},
	}
	cmd.Flags().StringVar(&localDir, "local-dir", "data/processed", "directory to upload")
	cmd.Flags().StringVar(&prefix, "prefix", "genomics/curated/", "key prefix in the bucket")
	cmd.Flags().StringVar(&bucket, "bucket", "", "bucket (overrides S3_BUCKET)")
	return cmd
}

func newS3PullCmd(a *app) *cobra.Command {
	var localDir, prefix, bucket string
	cmd := &cobra.Command{
		Use:   "s3-pull",
		Short: "Download objects under a prefix from S3",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("prefix") && a.cfg.S3.Prefix != "" {
				prefix = a.cfg.S3.Prefix
			}
			c, err := a.s3Client(cmd, bucket)
			if err != nil {
				return err
			}
			n, err := c.Pull(cmd.Context(), prefix, localDir)
			fmt.Fprintf(cmd.OutOrStdout(), "downloaded %d files to %s\n", n, localDir)
			return err
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "genomics/curated/", "key prefix in the bucket")
	cmd.Flags().StringVar(&localDir, "local-dir", "data/s3_download/", "destination directory")
	cmd.Flags().StringVar(&bucket, "bucket", "", "bucket (overrides S3_BUCKET)")
	return cmd
}
