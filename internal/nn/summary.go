package nn

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/born-ml/mobilenet/internal/tensor"
)

const summaryRule = "----------------------------------------------------------------"

// Summary runs a zero input of shape [1, inputShape...] through layers in
// Eval mode and writes one row per leaf module with its output shape and
// parameter count, followed by totals. Containers are expanded in place.
//
// The layout follows torchsummary:
//
//	        Layer (type)               Output Shape         Param #
//	================================================================
//	   AdaptiveAvgPool2D-1           [-1, 3, 32, 32]               0
func Summary[B tensor.Backend](w io.Writer, layers []Module[B], inputShape tensor.Shape, backend B) error {
	x := tensor.Zeros[float32](append(tensor.Shape{1}, inputShape...), backend)

	var rows [][3]string
	total := 0

	var visit func(m Module[B], in *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]
	visit = func(m Module[B], in *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
		if c, ok := m.(Container[B]); ok {
			for _, child := range c.Children() {
				in = visit(child, in)
			}
			return in
		}

		out := m.Forward(in, Eval)
		params := NumParameters(m.Parameters())
		total += params
		rows = append(rows, [3]string{
			fmt.Sprintf("%s-%d", layerName(m), len(rows)+1),
			formatShape(out.Shape()),
			groupDigits(params),
		})
		return out
	}
	for _, layer := range layers {
		x = visit(layer, x)
	}

	var sb strings.Builder
	sb.WriteString(summaryRule + "\n")
	fmt.Fprintf(&sb, "%20s  %25s %15s\n", "Layer (type)", "Output Shape", "Param #")
	sb.WriteString(strings.Repeat("=", len(summaryRule)) + "\n")
	for _, r := range rows {
		fmt.Fprintf(&sb, "%20s  %25s %15s\n", r[0], r[1], r[2])
	}
	sb.WriteString(strings.Repeat("=", len(summaryRule)) + "\n")
	fmt.Fprintf(&sb, "Total params: %s\n", groupDigits(total))
	fmt.Fprintf(&sb, "Trainable params: %s\n", groupDigits(total))
	sb.WriteString("Non-trainable params: 0\n")
	sb.WriteString(summaryRule + "\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// layerName turns "*nn.Conv2D[...]" into "Conv2D".
func layerName(m any) string {
	name := fmt.Sprintf("%T", m)
	name = strings.TrimPrefix(name, "*")
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func formatShape(shape tensor.Shape) string {
	parts := make([]string, len(shape))
	parts[0] = "-1"
	for i := 1; i < len(shape); i++ {
		parts[i] = strconv.Itoa(shape[i])
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// groupDigits formats n with thousands separators.
func groupDigits(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var sb strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		sb.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if sb.Len() > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(s[i : i+3])
	}
	return sb.String()
}
