package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// compute [vector...]: send one batch and print a product per line.
func computeCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "compute [vector...]",
		Short: "Send a batch of vectors and print their saturating products",
		Long: "Each vector is a comma separated list of int16 values, e.g. 2,3,4.\n" +
			"An empty argument is an empty vector. With --file vectors are read one per line.",
		Example: "  vcalcctl compute -u alice 2,3,4 200,200\n  vcalcctl compute -u alice --file vectors.txt",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				vectors [][]int16
				err     error
			)
			if file != "" {
				vectors, err = readVectorsFile(file)
			} else {
				vectors, err = parseVectors(args)
			}
			if err != nil {
				return err
			}

			c, err := connect()
			if err != nil {
				return err
			}
			defer c.Close()

			products, err := c.Compute(vectors)
			for _, p := range products {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read vectors from file, one per line (- for stdin)")
	return cmd
}

func readVectorsFile(path string) ([][]int16, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open vectors file: %w", err)
		}
		defer f.Close()
		r = f
	}
	return readVectors(r)
}

// readVectors читает векторы построчно. Значения разделяются запятыми
// или пробелами, пустая строка — пустой вектор, строки с # пропускаются.
func readVectors(r io.Reader) ([][]int16, error) {
	var vectors [][]int16
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(text, "#") {
			continue
		}
		v, err := parseVector(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		vectors = append(vectors, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vectors: %w", err)
	}
	return vectors, nil
}

func parseVectors(args []string) ([][]int16, error) {
	vectors := make([][]int16, 0, len(args))
	for i, arg := range args {
		v, err := parseVector(arg)
		if err != nil {
			return nil, fmt.Errorf("vector %d: %w", i+1, err)
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func parseVector(s string) ([]int16, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	v := make([]int16, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseInt(f, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("parse element %q: %w", f, err)
		}
		v = append(v, int16(n))
	}
	return v, nil
}
