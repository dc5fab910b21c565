package report

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/dbsmedya/puppetmaster/internal/connection"
	"github.com/dbsmedya/puppetmaster/internal/pipeline"
)

const graphMLNamespace = "http://graphml.graphdrawing.org/xmlns"

type graphMLDoc struct {
	XMLName xml.Name     `xml:"graphml"`
	XMLNS   string       `xml:"xmlns,attr"`
	Keys    []graphMLKey `xml:"key"`
	Graph   graphMLGraph `xml:"graph"`
}

type graphMLKey struct {
	ID   string `xml:"id,attr"`
	For  string `xml:"for,attr"`
	Name string `xml:"attr.name,attr"`
	Type string `xml:"attr.type,attr"`
}

type graphMLGraph struct {
	EdgeDefault string        `xml:"edgedefault,attr"`
	Nodes       []graphMLNode `xml:"node"`
	Edges       []graphMLEdge `xml:"edge"`
}

type graphMLNode struct {
	ID string `xml:"id,attr"`
}

type graphMLEdge struct {
	Source string        `xml:"source,attr"`
	Target string        `xml:"target,attr"`
	Data   []graphMLData `xml:"data"`
}

type graphMLData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

// Edge attribute keys.
var graphMLKeys = []graphMLKey{
	{ID: "weight", For: "edge", Name: "weight", Type: "double"},
	{ID: "confidence", For: "edge", Name: "confidence", Type: "string"},
	{ID: "smoking_guns", For: "edge", Name: "smoking_guns", Type: "int"},
	{ID: "strong_signals", For: "edge", Name: "strong_signals", Type: "int"},
}

// WriteGraphML writes the domain graph as undirected GraphML for external
// visualization tools. Each edge carries its weight and, when the
// connection behind it is known, its confidence and tier counts.
func WriteGraphML(w io.Writer, res *pipeline.Result) error {
	doc := graphMLDoc{
		XMLNS: graphMLNamespace,
		Keys:  graphMLKeys,
		Graph: graphMLGraph{EdgeDefault: "undirected"},
	}

	if res.Graph != nil {
		byPair := make(map[[2]string]connection.Connection, len(res.Connections))
		for _, c := range res.Connections {
			byPair[pairKey(c.DomainA, c.DomainB)] = c
		}

		for _, n := range res.Graph.Nodes() {
			doc.Graph.Nodes = append(doc.Graph.Nodes, graphMLNode{ID: n})
		}
		for _, e := range res.Graph.Edges() {
			edge := graphMLEdge{
				Source: e.A,
				Target: e.B,
				Data:   []graphMLData{{Key: "weight", Value: strconv.FormatFloat(e.Weight, 'g', -1, 64)}},
			}
			if c, ok := byPair[pairKey(e.A, e.B)]; ok {
				edge.Data = append(edge.Data,
					graphMLData{Key: "confidence", Value: c.Confidence().String()},
					graphMLData{Key: "smoking_guns", Value: strconv.Itoa(c.SmokingGunCount())},
					graphMLData{Key: "strong_signals", Value: strconv.Itoa(c.StrongCount())},
				)
			}
			doc.Graph.Edges = append(doc.Graph.Edges, edge)
		}
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func pairKey(a, b string) [2]string {
	if b < a {
		a, b = b, a
	}
	return [2]string{a, b}
}
