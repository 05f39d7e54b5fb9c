package eastmoney

import "strings"

// KeyField is the field that uniquely identifies a record within a report.
const KeyField = "SECURITY_CODE"

// DefaultColumnLabels maps API field names to the localized column labels
// written in the CSV header.
func DefaultColumnLabels() map[string]string {
	return map[string]string{
		"SECURITY_CODE":        "股票代码",
		"SECURITY_NAME_ABBR":   "股票简称",
		"TRADE_MARKET":         "交易市场",
		"UPDATE_DATE":          "更新日期",
		"REPORTDATE":           "报告日期",
		"BASIC_EPS":            "每股收益(元)",
		"DEDUCT_BASIC_EPS":     "扣非每股收益(元)",
		"TOTAL_OPERATE_INCOME": "营业总收入(元)",
		"PARENT_NETPROFIT":     "净利润(元)",
		"WEIGHTAVG_ROE":        "净资产收益率(%)",
		"YSTZ":                 "营收同比增长(%)",
		"SJLTZ":                "净利润同比增长(%)",
		"BPS":                  "每股净资产(元)",
		"MGJYXJJE":             "每股经营现金流(元)",
		"XSMLL":                "销售毛利率(%)",
		"YSHZ":                 "营收环比增长(%)",
		"SJLHZ":                "净利润环比增长(%)",
		"ASSIGNDSCRPT":         "分配方案",
		"NOTICE_DATE":          "公告日期",
		"ORG_CODE":             "组织代码",
		"SECUCODE":             "证券代码",
	}
}

// Labels is an immutable field → label table.
type Labels struct {
	m map[string]string
}

// NewLabels copies m into a Labels table. A nil map yields the defaults.
// Field names are matched case-insensitively since config loaders may
// lower-case map keys.
func NewLabels(m map[string]string) Labels {
	if m == nil {
		m = DefaultColumnLabels()
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[strings.ToUpper(k)] = v
	}
	return Labels{m: cp}
}

// IsZero reports whether l is the zero value rather than a table built by
// NewLabels.
func (l Labels) IsZero() bool {
	return l.m == nil
}

// Label returns the localized label for field, or field itself if none.
func (l Labels) Label(field string) string {
	if v, ok := l.m[strings.ToUpper(field)]; ok && v != "" {
		return v
	}
	return field
}

// Header maps every field to its label.
func (l Labels) Header(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = l.Label(f)
	}
	return out
}
