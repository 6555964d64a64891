package cli

import (
	"io"
	"strconv"
	"strings"
)

// prompt prints label and returns the next input line, trimmed. It returns
// io.EOF once the input is exhausted.
func (c *CLI) prompt(label string) (string, error) {
	c.printf("\n  %s", label)
	if !c.in.Scan() {
		if err := c.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(c.in.Text()), nil
}

// promptInt asks until it gets a whole number.
func (c *CLI) promptInt(label string) (int, error) {
	for {
		s, err := c.prompt(label)
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(s)
		if err == nil {
			return n, nil
		}
		c.message("Sorry, that was not a number.")
	}
}

// promptRating asks until it gets a number between 0 and 10.
func (c *CLI) promptRating(label string) (float64, error) {
	for {
		s, err := c.prompt(label)
		if err != nil {
			return 0, err
		}
		r, err := strconv.ParseFloat(s, 64)
		if err == nil && 0 <= r && r <= 10 {
			return r, nil
		}
		c.message("Please enter a valid number between 0 and 10!")
	}
}
