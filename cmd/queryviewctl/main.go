// Command queryviewctl builds a single-leaf query, wire-encodes it, and
// submits it to a running queryviewd's apply or materialize endpoint.
package main

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/contdb/queryview/internal/query"
)

func main() {
	var (
		addr        = flag.String("addr", "http://localhost:8080", "queryviewd base URL")
		container   = flag.String("container", "queryview.h5", "container name to query")
		kind        = flag.String("kind", "LinkName", "leaf kind: LinkName, AttrName, AttrValue, DataElement")
		op          = flag.String("op", "==", "comparison operator: == != < > <= >=")
		operand     = flag.String("operand", "", "string operand for LinkName/AttrName")
		numeric     = flag.String("value", "", "numeric operand for AttrValue/DataElement")
		valueType   = flag.String("type", "float64", "numeric operand type: int64, uint64, float64")
		materialize = flag.Bool("materialize", false, "POST to /materialize instead of /apply")
	)
	flag.Parse()

	q, err := buildLeaf(*kind, *op, *operand, *numeric, *valueType)
	if err != nil {
		fmt.Fprintln(os.Stderr, "queryviewctl:", err)
		os.Exit(1)
	}
	defer q.Close()

	size, err := query.Encode(q, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "queryviewctl: encode size:", err)
		os.Exit(1)
	}
	buf := make([]byte, size)
	if _, err := query.Encode(q, buf); err != nil {
		fmt.Fprintln(os.Stderr, "queryviewctl: encode:", err)
		os.Exit(1)
	}

	body, err := json.Marshal(map[string]string{"query_b64": base64.StdEncoding.EncodeToString(buf)})
	if err != nil {
		fmt.Fprintln(os.Stderr, "queryviewctl: marshal request:", err)
		os.Exit(1)
	}

	route := "apply"
	if *materialize {
		route = "materialize"
	}
	url := fmt.Sprintf("%s/api/v1/containers/%s/%s", *addr, *container, route)

	client := &http.Client{Timeout: 30 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		fmt.Fprintln(os.Stderr, "queryviewctl: request:", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintln(os.Stderr, "queryviewctl: read response:", err)
		os.Exit(1)
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, respBody, "", "  "); err != nil {
		fmt.Println(string(respBody))
		return
	}
	fmt.Println(pretty.String())

	if resp.StatusCode >= 400 {
		os.Exit(1)
	}
}

func buildLeaf(kindStr, opStr, operand, numeric, valueType string) (*query.Query, error) {
	kind, err := parseKind(kindStr)
	if err != nil {
		return nil, err
	}
	op, err := parseOp(opStr)
	if err != nil {
		return nil, err
	}

	switch kind {
	case query.LinkName, query.AttrName:
		if operand == "" {
			return nil, fmt.Errorf("-operand is required for kind %s", kindStr)
		}
		return query.MakeLeaf(kind, op, operand, nil)

	case query.AttrValue, query.DataElement:
		if numeric == "" {
			return nil, fmt.Errorf("-value is required for kind %s", kindStr)
		}
		scalar, err := parseScalar(numeric, valueType)
		if err != nil {
			return nil, err
		}
		return query.MakeLeaf(kind, op, "", &scalar)

	default:
		return nil, fmt.Errorf("unsupported kind %q", kindStr)
	}
}

func parseKind(s string) (query.Kind, error) {
	switch s {
	case "LinkName":
		return query.LinkName, nil
	case "AttrName":
		return query.AttrName, nil
	case "AttrValue":
		return query.AttrValue, nil
	case "DataElement":
		return query.DataElement, nil
	default:
		return 0, fmt.Errorf("unknown kind %q", s)
	}
}

func parseOp(s string) (query.Op, error) {
	switch s {
	case "==":
		return query.Equal, nil
	case "!=":
		return query.NotEqual, nil
	case "<":
		return query.Less, nil
	case ">":
		return query.Greater, nil
	case "<=":
		return query.LessEq, nil
	case ">=":
		return query.GreaterEq, nil
	default:
		return 0, fmt.Errorf("unknown operator %q", s)
	}
}

func parseScalar(numeric, valueType string) (query.Scalar, error) {
	switch valueType {
	case "int64":
		v, err := strconv.ParseInt(numeric, 10, 64)
		if err != nil {
			return query.Scalar{}, fmt.Errorf("parsing int64 value: %w", err)
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, uint64(v))
		return query.Scalar{Tag: query.TagInt64, Bytes: b}, nil

	case "uint64":
		v, err := strconv.ParseUint(numeric, 10, 64)
		if err != nil {
			return query.Scalar{}, fmt.Errorf("parsing uint64 value: %w", err)
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, v)
		return query.Scalar{Tag: query.TagUint64, Bytes: b}, nil

	case "float64":
		v, err := strconv.ParseFloat(numeric, 64)
		if err != nil {
			return query.Scalar{}, fmt.Errorf("parsing float64 value: %w", err)
		}
		b := make([]byte, 8)
		binary.LittleEndian.PutUint64(b, math.Float64bits(v))
		return query.Scalar{Tag: query.TagFloat64, Bytes: b}, nil

	default:
		return query.Scalar{}, fmt.Errorf("unsupported -type %q (want int64, uint64, or float64)", valueType)
	}
}
