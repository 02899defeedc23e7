// Package camtparser parses ISO20022 camt.053 bank-to-customer statements.
package camtparser

import "encoding/xml"

// document mirrors the subset of the camt.053 schema the reconciliation
// engine needs. Field names follow the ISO20022 element names.
type document struct {
	XMLName       xml.Name      `xml:"Document"`
	BkToCstmrStmt bkToCstmrStmt `xml:"BkToCstmrStmt"`
}

type bkToCstmrStmt struct {
	Stmt []stmt `xml:"Stmt"`
}

type stmt struct {
	Id      string  `xml:"Id"`
	CreDtTm string  `xml:"CreDtTm"`
	FrToDt  frToDt  `xml:"FrToDt"`
	Acct    acct    `xml:"Acct"`
	Bal     []bal   `xml:"Bal"`
	Ntry    []ntry  `xml:"Ntry"`
}

type frToDt struct {
	FrDtTm string `xml:"FrDtTm"`
	ToDtTm string `xml:"ToDtTm"`
}

type acct struct {
	Id struct {
		IBAN string `xml:"IBAN"`
		Othr struct {
			Id string `xml:"Id"`
		} `xml:"Othr"`
	} `xml:"Id"`
	Ccy  string `xml:"Ccy"`
	Svcr struct {
		FinInstnId struct {
			Nm string `xml:"Nm"`
		} `xml:"FinInstnId"`
	} `xml:"Svcr"`
}

type bal struct {
	Tp struct {
		CdOrPrtry struct {
			Cd string `xml:"Cd"`
		} `xml:"CdOrPrtry"`
	} `xml:"Tp"`
	Amt       amt    `xml:"Amt"`
	CdtDbtInd string `xml:"CdtDbtInd"`
	Dt        struct {
		Dt string `xml:"Dt"`
	} `xml:"Dt"`
}

type amt struct {
	Text string `xml:",chardata"`
	Ccy  string `xml:"Ccy,attr"`
}

type ntry struct {
	NtryRef   string `xml:"NtryRef"`
	Amt       amt    `xml:"Amt"`
	CdtDbtInd string `xml:"CdtDbtInd"`
	Sts       string `xml:"Sts"`
	BookgDt   struct {
		Dt string `xml:"Dt"`
	} `xml:"BookgDt"`
	ValDt struct {
		Dt string `xml:"Dt"`
	} `xml:"ValDt"`
	AcctSvcrRef  string   `xml:"AcctSvcrRef"`
	NtryDtls     ntryDtls `xml:"NtryDtls"`
	AddtlNtryInf string   `xml:"AddtlNtryInf"`
}

type ntryDtls struct {
	TxDtls []txDtls `xml:"TxDtls"`
}

type txDtls struct {
	Refs struct {
		EndToEndId string `xml:"EndToEndId"`
		TxId       string `xml:"TxId"`
	} `xml:"Refs"`
	RltdPties struct {
		Dbtr struct {
			Nm string `xml:"Nm"`
		} `xml:"Dbtr"`
		DbtrAcct struct {
			Id struct {
				IBAN string `xml:"IBAN"`
			} `xml:"Id"`
		} `xml:"DbtrAcct"`
		Cdtr struct {
			Nm string `xml:"Nm"`
		} `xml:"Cdtr"`
		CdtrAcct struct {
			Id struct {
				IBAN string `xml:"IBAN"`
			} `xml:"Id"`
		} `xml:"CdtrAcct"`
	} `xml:"RltdPties"`
	RmtInf struct {
		Ustrd []string `xml:"Ustrd"`
		Strd  struct {
			CdtrRefInf struct {
				Ref string `xml:"Ref"`
			} `xml:"CdtrRefInf"`
		} `xml:"Strd"`
	} `xml:"RmtInf"`
}

// Balance type codes of interest (ISO20022 BalanceType12Code).
const (
	balanceOpening = "OPBD"
	balanceClosing = "CLBD"
)
