package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/topi314/gosign/internal/pdfstamp"
)

func NewStampCmd(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:     "stamp [document] [image]",
		GroupID: "tools",
		Short:   "Stamps a signature image onto a local pdf",
		Example: `gosign stamp contract.pdf signature.png --page 2 -x 100 -y 650 --width 150 --height 50 --caption "Jane Doe"

Will write contract-signed.pdf with the image on the second page.
Coordinates are in points with the origin in the top left corner of the page.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			page, _ := flags.GetInt("page")
			x, _ := flags.GetFloat64("x")
			y, _ := flags.GetFloat64("y")
			width, _ := flags.GetFloat64("width")
			height, _ := flags.GetFloat64("height")
			captions, _ := flags.GetStringSlice("caption")
			out, _ := flags.GetString("out")

			src, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}
			rawImage, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			pageCount, err := pdfstamp.PageCount(src)
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}
			if page < 1 || page > pageCount {
				return fmt.Errorf("page %d is out of range, the document has %d pages", page, pageCount)
			}
			if width <= 0 || height <= 0 {
				return fmt.Errorf("width and height must be positive")
			}

			img, err := pdfstamp.DecodeImage(rawImage)
			if err != nil {
				return fmt.Errorf("failed to decode image: %w", err)
			}

			signed, err := pdfstamp.Stamp(src, page-1, img, pdfstamp.Rect{
				X:      x,
				Y:      y,
				Width:  width,
				Height: height,
			}, captions)
			if err != nil {
				return fmt.Errorf("failed to stamp document: %w", err)
			}

			if out == "" {
				out = strings.TrimSuffix(args[0], ".pdf") + "-signed.pdf"
			}
			if err = os.WriteFile(out, signed, 0o644); err != nil {
				return fmt.Errorf("failed to write signed document: %w", err)
			}
			cmd.Printf("Wrote %s (%s)\n", out, humanize.Bytes(uint64(len(signed))))
			return nil
		},
	}

	parent.AddCommand(cmd)

	cmd.Flags().IntP("page", "p", 1, "The page to stamp, starting at 1")
	cmd.Flags().Float64P("x", "x", 0, "Distance of the image from the left edge of the page")
	cmd.Flags().Float64P("y", "y", 0, "Distance of the image from the top edge of the page")
	cmd.Flags().Float64("width", 150, "Width of the image")
	cmd.Flags().Float64("height", 50, "Height of the image")
	cmd.Flags().StringSlice("caption", nil, "Caption lines written below the image")
	cmd.Flags().StringP("out", "o", "", "The output file (default is <document>-signed.pdf)")
}
