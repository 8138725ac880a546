package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	&SysOpr{},
	&SysOprLog{},
	// Catalog
	&Category{},
	&Product{},
	&Customer{},
	// Sales
	&Transaction{},
	&DailySummary{},
}
