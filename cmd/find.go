package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/barcode"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/scanner"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/store"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/types"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/utils"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/vision"
	"github.com/Shubhamsk2000/Smart-basket-Mini-project/internal/worker"
	"github.com/spf13/cobra"
)

var (
	findDecoderCmd string
	findLookup     bool
)

var findCmd = &cobra.Command{
	Use:   "find <image_path>",
	Short: "Decode the codes in a saved image and look the payload up in the catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runFind(cmd.Context(), cmd.OutOrStdout(), args[0])
	},
}

func init() {
	findCmd.Flags().StringVar(&findDecoderCmd, "decoder-cmd", "", "External decoder process instead of the built-in one")
	findCmd.Flags().BoolVar(&findLookup, "lookup", true, "Look the selected payload up in the product catalog")
	rootCmd.AddCommand(findCmd)
}

func runFind(ctx context.Context, out io.Writer, imagePath string) error {
	imgData, err := os.ReadFile(imagePath)
	if err != nil {
		utils.ShowError("Failed to read image file", err, nil)
		return err
	}

	img, err := vision.Decoder{}.Decode(imgData)
	if err != nil {
		utils.ShowError("Failed to decode image", err, nil)
		return err
	}
	defer img.Close()

	var det scanner.Detector = barcode.NewDetector()
	if findDecoderCmd != "" {
		args := strings.Fields(findDecoderCmd)
		if len(args) == 0 {
			return errors.New("invalid --decoder-cmd: empty command")
		}
		// We use ID 0 for this ad-hoc worker
		w, err := worker.NewDecoderWorker(0, args[0], args[1:]...)
		if err != nil {
			utils.ShowError("Failed to start decoder worker", err, nil)
			return err
		}
		defer w.Close()
		det = w
	}

	codes, err := det.Detect(img)
	if err != nil {
		return fmt.Errorf("detection failed: %w", err)
	}
	if len(codes) == 0 {
		fmt.Fprintln(out, "No codes found in image.")
		return nil
	}
	printCodes(out, codes)

	sel, ok := scanner.Select(codes)
	if !ok {
		fmt.Fprintln(out, "No usable payload (all codes empty or undecodable).")
		return nil
	}
	fmt.Fprintf(out, "\n🎯 Selected payload: %s\n", sel.Payload)

	if !findLookup {
		return nil
	}
	db, err := openDB(ctx)
	if err != nil {
		return err
	}
	p, err := db.FindByBarcode(ctx, sel.Payload)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintln(out, "❓ Not in catalog.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("catalog lookup failed: %w", err)
	}
	fmt.Fprintf(out, "✅ %s (%.2f)\n", p.Name, p.Price)
	return nil
}

func printCodes(out io.Writer, codes []types.DetectedCode) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "#\tTYPE\tPAYLOAD\tBOUNDS")
	fmt.Fprintln(w, "-\t----\t-------\t------")
	for i, c := range codes {
		text := c.Text()
		switch {
		case !c.Decodable:
			text = "<undecodable>"
		case text == "":
			text = "<empty>"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%v\n", i, c.Symbology, text, c.Boundary.Bounds())
	}
	w.Flush()
}
