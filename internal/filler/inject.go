// File: internal/filler/inject.go
package filler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
)

// injector enters one answer into the question rooted at container and
// returns the name of the strategy that worked.
type injector func(ctx context.Context, sess schemas.BrowserSession, q schemas.QuestionDescriptor, container string, ans schemas.Answer) (string, error)

func (f *Filler) injectors() map[schemas.QuestionType]injector {
	return map[schemas.QuestionType]injector{
		schemas.QuestionText:           f.fillText,
		schemas.QuestionLinearScale:    f.fillScale,
		schemas.QuestionMultipleChoice: f.fillMultipleChoice,
		schemas.QuestionCheckbox:       f.fillCheckbox,
		schemas.QuestionDropdown:       f.fillDropdown,
		schemas.QuestionDate:           f.fillDate,
		schemas.QuestionTime:           f.fillTime,
		schemas.QuestionGrid:           f.fillGrid,
		schemas.QuestionCheckboxGrid:   f.fillGrid,
	}
}

// locate returns the first selector that resolves within the element timeout.
func (f *Filler) locate(ctx context.Context, sess schemas.BrowserSession, sels ...schemas.Selector) (schemas.Selector, error) {
	for _, sel := range sels {
		err := sess.WaitFor(ctx, sel, f.cfg.ElementTimeout)
		if err == nil {
			return sel, nil
		}
		if !errors.Is(err, schemas.ErrElementNotFound) {
			return schemas.Selector{}, err
		}
	}
	return schemas.Selector{}, fmt.Errorf("%w: no input for question", schemas.ErrElementNotFound)
}

// present reports whether sel matches anything right now.
func present(ctx context.Context, sess schemas.BrowserSession, sel schemas.Selector) (bool, error) {
	els, err := sess.Elements(ctx, sel)
	if err != nil {
		return false, err
	}
	return len(els) > 0, nil
}

// choices lists the controls matching rel inside container with the label
// each one answers to. Unlabelled controls borrow the extracted option text
// at the same position.
func choices(ctx context.Context, sess schemas.BrowserSession, container, rel string, fallback []string) ([]schemas.ElementInfo, []string, error) {
	els, err := sess.Elements(ctx, within(container, rel))
	if err != nil {
		return nil, nil, err
	}
	if len(els) == 0 {
		return nil, nil, fmt.Errorf("%w: no controls in question", schemas.ErrElementNotFound)
	}
	labels := make([]string, len(els))
	for i, el := range els {
		labels[i] = controlLabel(el.Attrs, el.Text)
		if labels[i] == "" && i < len(fallback) {
			labels[i] = fallback[i]
		}
	}
	return els, labels, nil
}

const textInputs = `//input[@type="text" or @type="email" or @type="url" or @type="number" or not(@type)]`

func (f *Filler) fillText(ctx context.Context, sess schemas.BrowserSession, q schemas.QuestionDescriptor, container string, ans schemas.Answer) (string, error) {
	clean := XPathLiteral(strings.TrimSpace(strings.ReplaceAll(q.Question, "*", "")))
	sel, err := f.locate(ctx, sess,
		schemas.ByXPath("("+container+textInputs+" | "+container+"//textarea)[1]"),
		schemas.ByXPath(`(//div[@role="heading"][contains(normalize-space(), `+clean+`)]/following::*[self::textarea or self::input[@type="text" or @type="email" or not(@type)]])[1]`),
	)
	if err != nil {
		return "", err
	}
	value := ans.String()

	return Chain{
		{Name: "type", Fn: func(ctx context.Context) error {
			if err := sess.Click(ctx, sel); err != nil {
				return err
			}
			if err := sess.Clear(ctx, sel); err != nil {
				return err
			}
			return sess.SendKeys(ctx, sel, value)
		}},
		{Name: "set-value", Fn: func(ctx context.Context) error {
			return sess.SetValue(ctx, sel, value)
		}},
		{Name: "char-by-char", Fn: func(ctx context.Context) error {
			// A half-typed value from an earlier attempt must not be doubled.
			_ = sess.Clear(ctx, sel)
			for _, r := range value {
				if err := sess.SendKeys(ctx, sel, string(r)); err != nil {
					return err
				}
				if err := sleep(ctx, f.cfg.CharDelay); err != nil {
					return err
				}
			}
			return nil
		}},
	}.Run(ctx)
}

const radioControls = `//div[@role="radio"]`

func (f *Filler) fillScale(ctx context.Context, sess schemas.BrowserSession, q schemas.QuestionDescriptor, container string, ans schemas.Answer) (string, error) {
	radios, _, err := choices(ctx, sess, container, radioControls, q.Values())
	if err != nil {
		return "", err
	}
	return f.scaleChain(sess, radios, q, ans.String()).Run(ctx)
}

// scaleChain clicks the control for the resolved scale position: the one
// carrying it as data-value, else the one at that position, else the middle.
func (f *Filler) scaleChain(sess schemas.BrowserSession, radios []schemas.ElementInfo, q schemas.QuestionDescriptor, answer string) Chain {
	target := ResolveScaleIndex(answer, q.ScaleLabels(), q.Values())
	n := len(radios)
	inRange := target >= 1 && target <= n
	if !inRange {
		f.logger.Debug("Scale answer out of range, using middle option",
			zap.String("answer", answer), zap.Int("resolved", target), zap.Int("options", n))
	}
	return Chain{
		{Name: "scale-data-value", Fn: func(ctx context.Context) error {
			if !inRange {
				return errNotApplicable
			}
			want := strconv.Itoa(target)
			for _, r := range radios {
				if r.Attr("data-value") == want {
					return sess.ClickJS(ctx, r.Ref)
				}
			}
			return errNotApplicable
		}},
		{Name: "scale-position", Fn: func(ctx context.Context) error {
			if !inRange {
				return errNotApplicable
			}
			return sess.ClickJS(ctx, radios[target-1].Ref)
		}},
		{Name: "scale-middle", Fn: func(ctx context.Context) error {
			return sess.ClickJS(ctx, radios[ChooseScaleControl(target, n)].Ref)
		}},
	}
}

func clickAt(sess schemas.BrowserSession, els []schemas.ElementInfo, pick func() int) func(context.Context) error {
	return func(ctx context.Context) error {
		i := pick()
		if i < 0 {
			return errNotApplicable
		}
		return sess.ClickJS(ctx, els[i].Ref)
	}
}

func (f *Filler) fillMultipleChoice(ctx context.Context, sess schemas.BrowserSession, q schemas.QuestionDescriptor, container string, ans schemas.Answer) (string, error) {
	radios, labels, err := choices(ctx, sess, container, radioControls, q.Values())
	if err != nil {
		return "", err
	}
	answer := ans.String()
	chain := Chain{
		{Name: "exact", Fn: clickAt(sess, radios, func() int { return exactIndex(answer, labels) })},
		{Name: "fuzzy", Fn: clickAt(sess, radios, func() int { return fuzzyIndex(answer, labels) })},
	}
	if allNumeric(labels) {
		chain = append(chain, f.scaleChain(sess, radios, q, answer)...)
	}
	chain = append(chain, Strategy{Name: "first", Fn: clickAt(sess, radios, func() int { return 0 })})
	return chain.Run(ctx)
}

func (f *Filler) fillCheckbox(ctx context.Context, sess schemas.BrowserSession, q schemas.QuestionDescriptor, container string, ans schemas.Answer) (string, error) {
	boxes, labels, err := choices(ctx, sess, container, `//div[@role="checkbox"]`, q.Values())
	if err != nil {
		return "", err
	}
	used := make(map[string]bool)
	clicked := 0
	for _, want := range ans.Strings() {
		how, i := "exact", exactIndex(want, labels)
		if i < 0 {
			how, i = "fuzzy", fuzzyIndex(want, labels)
		}
		if i < 0 {
			f.logger.Warn("No checkbox option matches answer",
				zap.String("identifier", q.Identifier), zap.String("answer", want))
			continue
		}
		if boxes[i].Attr("aria-checked") != "true" {
			if err := sess.ClickJS(ctx, boxes[i].Ref); err != nil {
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				f.logger.Warn("Could not tick checkbox",
					zap.String("identifier", q.Identifier), zap.String("option", labels[i]), zap.Error(err))
				continue
			}
			// Keep a repeated answer from unticking the box again.
			if boxes[i].Attrs == nil {
				boxes[i].Attrs = make(map[string]string)
			}
			boxes[i].Attrs["aria-checked"] = "true"
		}
		used[how] = true
		clicked++
	}
	if clicked == 0 {
		return "", fmt.Errorf("%w: no checkbox option matched", schemas.ErrInjection)
	}
	return joinKeys(used), nil
}

func (f *Filler) fillDropdown(ctx context.Context, sess schemas.BrowserSession, q schemas.QuestionDescriptor, container string, ans schemas.Answer) (string, error) {
	listbox := within(container, `//div[@role="listbox"]`)
	if err := sess.ClickJS(ctx, listbox); err != nil {
		return "", err
	}
	// The option popup animates in after the listbox opens.
	if err := sleep(ctx, f.cfg.ScrollSettle); err != nil {
		return "", err
	}
	options, labels, err := choices(ctx, sess, container, `//div[@role="option"]`, nil)
	if err != nil {
		return "", err
	}
	for i, l := range labels {
		if strings.EqualFold(l, "Choose") {
			labels[i] = ""
		}
	}
	answer := ans.String()
	return Chain{
		{Name: "exact", Fn: clickAt(sess, options, func() int { return exactIndex(answer, labels) })},
		{Name: "fuzzy", Fn: clickAt(sess, options, func() int { return fuzzyIndex(answer, labels) })},
		{Name: "first", Fn: clickAt(sess, options, func() int {
			for i, l := range labels {
				if l != "" {
					return i
				}
			}
			return -1
		})},
	}.Run(ctx)
}

var (
	dateLayouts = []string{"2006-01-02", "2006/01/02", "01/02/2006", "January 2, 2006", "2 January 2006"}
	timeLayouts = []string{"15:04", "15:04:05", "3:04 PM", "3:04PM", "3 PM", "3PM"}
)

func parseFirst(value string, layouts []string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, l := range layouts {
		if t, err := time.Parse(l, value); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// splitField is one part of a date or time entered through separate inputs.
type splitField struct {
	label string
	value string
}

func (f *Filler) fillSplit(ctx context.Context, sess schemas.BrowserSession, container string, fields []splitField) error {
	for _, fld := range fields {
		sel := within(container, `//input[@aria-label=`+XPathLiteral(fld.label)+`]`)
		ok, err := present(ctx, sess, sel)
		if err != nil {
			return err
		}
		if !ok {
			return errNotApplicable
		}
		if err := sess.Clear(ctx, sel); err != nil {
			return err
		}
		if err := sess.SendKeys(ctx, sel, fld.value); err != nil {
			return err
		}
	}
	return nil
}

func (f *Filler) nativeOrText(sess schemas.BrowserSession, container, inputType, formatted, raw string, parsed bool, split []splitField) Chain {
	native := within(container, `//input[@type=`+XPathLiteral(inputType)+`]`)
	anyInput := within(container, `//input[not(@type="hidden")]`)
	return Chain{
		{Name: "native", Fn: func(ctx context.Context) error {
			if !parsed {
				return errNotApplicable
			}
			ok, err := present(ctx, sess, native)
			if err != nil {
				return err
			}
			if !ok {
				return errNotApplicable
			}
			return sess.SetValue(ctx, native, formatted)
		}},
		{Name: "split", Fn: func(ctx context.Context) error {
			if !parsed {
				return errNotApplicable
			}
			return f.fillSplit(ctx, sess, container, split)
		}},
		{Name: "text", Fn: func(ctx context.Context) error {
			if err := sess.Clear(ctx, anyInput); err != nil {
				return err
			}
			return sess.SendKeys(ctx, anyInput, raw)
		}},
	}
}

func (f *Filler) fillDate(ctx context.Context, sess schemas.BrowserSession, _ schemas.QuestionDescriptor, container string, ans schemas.Answer) (string, error) {
	raw := ans.String()
	t, ok := parseFirst(raw, dateLayouts)
	split := []splitField{
		{label: "Day of the month", value: fmt.Sprintf("%02d", t.Day())},
		{label: "Month", value: fmt.Sprintf("%02d", int(t.Month()))},
		{label: "Year", value: strconv.Itoa(t.Year())},
	}
	return f.nativeOrText(sess, container, "date", t.Format("2006-01-02"), raw, ok, split).Run(ctx)
}

func (f *Filler) fillTime(ctx context.Context, sess schemas.BrowserSession, _ schemas.QuestionDescriptor, container string, ans schemas.Answer) (string, error) {
	raw := ans.String()
	t, ok := parseFirst(raw, timeLayouts)
	split := []splitField{
		{label: "Hour", value: fmt.Sprintf("%02d", t.Hour())},
		{label: "Minute", value: fmt.Sprintf("%02d", t.Minute())},
	}
	return f.nativeOrText(sess, container, "time", t.Format("15:04"), raw, ok, split).Run(ctx)
}

// rowSelector finds the radiogroup, group or table row carrying the row caption.
func rowSelector(container, row string) string {
	lit := XPathLiteral(row)
	return fmt.Sprintf(`(%[1]s//div[(@role="radiogroup" or @role="group" or contains(@class, "freebirdFormviewerViewItemsGridRowGroup"))`+
		` and (@aria-label=%[2]s or .//*[normalize-space()=%[2]s])] | %[1]s//tr[th[normalize-space()=%[2]s]])[1]`, container, lit)
}

func (f *Filler) fillGrid(ctx context.Context, sess schemas.BrowserSession, q schemas.QuestionDescriptor, container string, ans schemas.Answer) (string, error) {
	grid := ans.Grid()
	var knownRows, knownCols []string
	if q.Options != nil {
		knownRows, knownCols = q.Options.Rows, q.Options.Columns
	}
	keys := make([]string, 0, len(grid))
	for k := range grid {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	used := make(map[string]bool)
	filled := 0
	for _, key := range keys {
		row := key
		if len(knownRows) > 0 && exactIndex(key, knownRows) < 0 {
			if i := fuzzyIndex(key, knownRows); i >= 0 {
				row = knownRows[i]
			}
		}
		cols := grid[key]
		if q.Type == schemas.QuestionGrid && len(cols) > 1 {
			cols = cols[:1]
		}
		n, how, err := f.fillGridRow(ctx, sess, container, row, cols, knownCols)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			f.logger.Warn("Could not fill grid row",
				zap.String("identifier", q.Identifier), zap.String("row", row), zap.Error(err))
			continue
		}
		for h := range how {
			used[h] = true
		}
		filled += n
	}
	if filled == 0 {
		return "", fmt.Errorf("%w: no grid cell matched", schemas.ErrInjection)
	}
	return joinKeys(used), nil
}

func (f *Filler) fillGridRow(ctx context.Context, sess schemas.BrowserSession, container, row string, cols, knownCols []string) (int, map[string]bool, error) {
	cells, labels, err := choices(ctx, sess, rowSelector(container, row), `//*[@role="radio" or @role="checkbox"]`, knownCols)
	if err != nil {
		return 0, nil, err
	}
	how := make(map[string]bool)
	n := 0
	for _, col := range cols {
		name, i := "exact", exactIndex(col, labels)
		if i < 0 {
			name, i = "fuzzy", fuzzyIndex(col, labels)
		}
		if i < 0 {
			continue
		}
		if cells[i].Attr("aria-checked") == "true" {
			how[name] = true
			n++
			continue
		}
		if err := sess.ClickJS(ctx, cells[i].Ref); err != nil {
			return n, how, err
		}
		how[name] = true
		n++
	}
	if n == 0 {
		return 0, nil, fmt.Errorf("%w: no column matched %v", schemas.ErrInjection, cols)
	}
	return n, how, nil
}

func joinKeys(set map[string]bool) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, "+")
}
