package client

import (
	"encoding/xml"
	"strings"
)

// Wire constants of the PublicReportService runReport operation.
const (
	SOAPNamespace          = "http://www.w3.org/2003/05/soap-envelope"
	ReportServiceNamespace = "http://xmlns.oracle.com/oxp/service/PublicReportService"

	ContentType = "application/soap+xml;charset=UTF-8"
	SOAPAction  = "#POST"

	// SQLParameter is the report parameter that carries the statement.
	SQLParameter = "p_sql"

	// PayloadSuffix marks the response element holding the base64 result.
	PayloadSuffix = "reportBytes"
)

// BuildEnvelope renders the runReport request body. The statement is
// embedded verbatim as CDATA, so callers normalize it first.
func BuildEnvelope(sql, reportPath string) string {
	var b strings.Builder
	b.Grow(len(sql) + 1024)

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	b.WriteString("\n")
	b.WriteString(`<soap:Envelope xmlns:soap="` + SOAPNamespace + `" xmlns:pub="` + ReportServiceNamespace + `">`)
	b.WriteString(`<soap:Body><pub:runReport><pub:reportRequest>`)
	b.WriteString(`<pub:attributeFormat>xml</pub:attributeFormat>`)
	b.WriteString(`<pub:byPassCache>true</pub:byPassCache>`)
	b.WriteString(`<pub:reportAbsolutePath>`)
	_ = xml.EscapeText(&b, []byte(reportPath))
	b.WriteString(`</pub:reportAbsolutePath>`)
	b.WriteString(`<pub:sizeOfDataChunkDownload>-1</pub:sizeOfDataChunkDownload>`)
	b.WriteString(`<pub:parameterNameValues><pub:item>`)
	b.WriteString(`<pub:name>` + SQLParameter + `</pub:name>`)
	b.WriteString(`<pub:values><pub:item>`)
	writeCDATA(&b, sql)
	b.WriteString(`</pub:item></pub:values>`)
	b.WriteString(`</pub:item></pub:parameterNameValues>`)
	b.WriteString(`</pub:reportRequest></pub:runReport></soap:Body></soap:Envelope>`)
	return b.String()
}

// writeCDATA writes s as one or more CDATA sections. A "]]>" in s is split
// across two sections.
func writeCDATA(b *strings.Builder, s string) {
	b.WriteString("<![CDATA[")
	b.WriteString(strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>"))
	b.WriteString("]]>")
}
