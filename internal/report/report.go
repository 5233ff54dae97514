package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/Hara602/triangleSentry/internal/model"
)

// ErrUnknownCategory 格式化时遇到未知的事件类别，属于程序缺陷
var ErrUnknownCategory = errors.New("unknown detection event category")

const timeLayout = "2006-01-02 15:04:05 MST"

// DescribeEvent 单个事件的说明短语
func DescribeEvent(ev model.Event) (string, error) {
	switch ev.Category {
	case model.FileModified:
		return "file modification: " + ev.Detail, nil
	case model.FileAttrChanged:
		return "file attribute change: " + ev.Detail, nil
	case model.FileBirth:
		return "file birth: " + ev.Detail, nil
	case model.LocationStopped:
		return "location service stopped: " + ev.Detail, nil
	case model.NetTimestamp, model.NetUsage, model.NetFirst, model.NetTimestamp2:
		return "traffic by process " + ev.Detail, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownCategory, ev.Category)
	}
}

// Explain 检测结果的文字说明
func Explain(d model.Detection) (string, error) {
	switch d.Kind {
	case model.KindExact:
		if d.Match == nil {
			return "", fmt.Errorf("exact detection at %v without identifier", d.Timestamp)
		}
		return fmt.Sprintf("Exact match by %s : %s", d.Match.Source, d.Match.Identifier), nil
	case model.KindHeuristic:
		var sb strings.Builder
		sb.WriteString("Suspicious combination of events: ")
		for _, te := range d.Window {
			line, err := DescribeEvent(te.Event)
			if err != nil {
				return "", err
			}
			sb.WriteString("\n * ")
			sb.WriteString(line)
		}
		return sb.String(), nil
	default:
		return "", fmt.Errorf("unknown detection kind %s", d.Kind)
	}
}

// Writer 控制台报告
type Writer struct {
	out      io.Writer
	alert    *color.Color
	suspect  *color.Color
	clean    *color.Color
	headline *color.Color
}

// NewWriter colored=false 时输出纯文本
func NewWriter(out io.Writer, colored bool) *Writer {
	w := &Writer{
		out:      out,
		alert:    color.New(color.FgHiRed),
		suspect:  color.New(color.FgHiYellow),
		clean:    color.New(color.FgGreen),
		headline: color.New(color.FgHiRed, color.Bold),
	}
	for _, c := range []*color.Color{w.alert, w.suspect, w.clean, w.headline} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return w
}

// Detections 先完整渲染再一次性写出；任一结果无法格式化时不输出任何内容
func (w *Writer) Detections(ds []model.Detection) error {
	if len(ds) == 0 {
		w.clean.Fprintln(w.out, "No traces of compromise were identified")
		return nil
	}

	var buf bytes.Buffer
	w.headline.Fprintln(&buf, "==== IDENTIFIED TRACES OF COMPROMISE (Operation Triangulation) ====")
	for _, d := range ds {
		text, err := Explain(d)
		if err != nil {
			return err
		}
		stamp := model.UnixTime(d.Timestamp).Format(timeLayout)
		label := w.alert.Sprint("DETECTED")
		if d.Kind == model.KindHeuristic {
			label = w.suspect.Sprint("SUSPICION")
		}
		fmt.Fprintf(&buf, "%s %s %s\n", stamp, label, text)
	}
	_, err := buf.WriteTo(w.out)
	return err
}

// Inconclusive 可选工件缺失或解析失败时的提示
func (w *Writer) Inconclusive(skipped []string, warnings error) {
	if len(skipped) == 0 && warnings == nil {
		return
	}
	fmt.Fprintln(w.out, "Note: If relevant paths were not found or could not be analyzed, this result may not be conclusive.")
	if len(skipped) > 0 {
		fmt.Fprintf(w.out, "Artifacts not found: %s\n", strings.Join(skipped, ", "))
	}
	if warnings != nil {
		fmt.Fprintf(w.out, "Artifacts not analyzed: %v\n", warnings)
	}
}

type jsonEvent struct {
	Timestamp   float64 `json:"timestamp"`
	Category    string  `json:"category"`
	Detail      string  `json:"detail"`
	Description string  `json:"description"`
}

type jsonDetection struct {
	Timestamp  float64     `json:"timestamp"`
	Time       string      `json:"time"`
	Kind       string      `json:"kind"`
	Source     string      `json:"source,omitempty"`
	Identifier string      `json:"identifier,omitempty"`
	Events     []jsonEvent `json:"events,omitempty"`
}

// WriteJSON 以 JSON 数组输出，同样拒绝未知类别
func WriteJSON(out io.Writer, ds []model.Detection) error {
	docs := make([]jsonDetection, 0, len(ds))
	for _, d := range ds {
		doc := jsonDetection{
			Timestamp: d.Timestamp,
			Time:      model.UnixTime(d.Timestamp).Format(timeLayout),
			Kind:      d.Kind.String(),
		}
		if d.Match != nil {
			doc.Source = d.Match.Source
			doc.Identifier = d.Match.Identifier
		}
		for _, te := range d.Window {
			desc, err := DescribeEvent(te.Event)
			if err != nil {
				return err
			}
			doc.Events = append(doc.Events, jsonEvent{
				Timestamp:   te.Timestamp,
				Category:    te.Event.Category.String(),
				Detail:      te.Event.Detail,
				Description: desc,
			})
		}
		docs = append(docs, doc)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}
