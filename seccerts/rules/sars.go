package rules

import (
	"github.com/seccerts/seccerts/seccerts/certificate"
)

// SARsImpliedFromEAL lists, for each evaluation assurance level, the exact set
// of security assurance components the level implies. Augmentation ("+") is
// recorded separately on the certificate and never alters the implied set.
// This ignores ACM and AMA SARs that are present in CC version 2.
var SARsImpliedFromEAL = map[string][]certificate.SAR{
	"EAL1": {
		{Family: "ADV_FSP", Level: 1},
		{Family: "AGD_OPE", Level: 1},
		{Family: "AGD_PRE", Level: 1},
		{Family: "ALC_CMC", Level: 1},
		{Family: "ALC_CMS", Level: 1},
		{Family: "ASE_CCL", Level: 1},
		{Family: "ASE_ECD", Level: 1},
		{Family: "ASE_INT", Level: 1},
		{Family: "ASE_OBJ", Level: 1},
		{Family: "ASE_REQ", Level: 1},
		{Family: "ASE_TSS", Level: 1},
		{Family: "ATE_IND", Level: 1},
		{Family: "AVA_VAN", Level: 1},
	},
	"EAL2": {
		{Family: "ADV_ARC", Level: 1},
		{Family: "ADV_TDS", Level: 1},
		{Family: "AGD_OPE", Level: 1},
		{Family: "AGD_PRE", Level: 1},
		{Family: "ALC_CMC", Level: 2},
		{Family: "ALC_CMS", Level: 2},
		{Family: "ALC_DEL", Level: 1},
		{Family: "ASE_CCL", Level: 1},
		{Family: "ASE_ECD", Level: 1},
		{Family: "ASE_INT", Level: 1},
		{Family: "ASE_OBJ", Level: 2},
		{Family: "ASE_REQ", Level: 2},
		{Family: "ASE_SPD", Level: 1},
		{Family: "ASE_TSS", Level: 1},
		{Family: "ATE_COV", Level: 1},
		{Family: "ATE_FUN", Level: 1},
		{Family: "ATE_IND", Level: 2},
		{Family: "AVA_VAN", Level: 2},
	},
	"EAL3": {
		{Family: "ADV_ARC", Level: 1},
		{Family: "ADV_FSP", Level: 3},
		{Family: "ADV_TDS", Level: 2},
		{Family: "AGD_PRE", Level: 1},
		{Family: "ALC_CMC", Level: 3},
		{Family: "ALC_CMS", Level: 3},
		{Family: "ALC_DEL", Level: 1},
		{Family: "ALC_DVS", Level: 1},
		{Family: "ALC_LCD", Level: 1},
		{Family: "ASE_CCL", Level: 1},
		{Family: "ASE_ECD", Level: 1},
		{Family: "ASE_INT", Level: 1},
		{Family: "ASE_OBJ", Level: 2},
		{Family: "ASE_REQ", Level: 2},
		{Family: "ASE_SPD", Level: 1},
		{Family: "ASE_TSS", Level: 1},
		{Family: "ATE_COV", Level: 2},
		{Family: "ATE_DPT", Level: 1},
		{Family: "ATE_FUN", Level: 1},
		{Family: "ATE_IND", Level: 2},
		{Family: "AVA_VAN", Level: 2},
	},
	"EAL4": {
		{Family: "ADV_ARC", Level: 1},
		{Family: "ADV_FSP", Level: 4},
		{Family: "ADV_IMP", Level: 1},
		{Family: "ADV_TDS", Level: 3},
		{Family: "AGD_OPE", Level: 1},
		{Family: "AGD_PRE", Level: 1},
		{Family: "ALC_CMC", Level: 4},
		{Family: "ALC_CMS", Level: 4},
		{Family: "ALC_DEL", Level: 1},
		{Family: "ALC_DVS", Level: 1},
		{Family: "ALC_LCD", Level: 1},
		{Family: "ALC_TAT", Level: 1},
		{Family: "ASE_CCL", Level: 1},
		{Family: "ASE_ECD", Level: 1},
		{Family: "ASE_INT", Level: 1},
		{Family: "ASE_OBJ", Level: 2},
		{Family: "ASE_REQ", Level: 2},
		{Family: "ASE_SPD", Level: 1},
		{Family: "ASE_TSS", Level: 1},
		{Family: "ATE_COV", Level: 2},
		{Family: "ATE_DPT", Level: 1},
		{Family: "ATE_FUN", Level: 1},
		{Family: "ATE_IND", Level: 2},
		{Family: "AVA_VAN", Level: 3},
	},
	"EAL5": {
		{Family: "ADV_ARC", Level: 1},
		{Family: "ADV_FSP", Level: 5},
		{Family: "ADV_IMP", Level: 1},
		{Family: "ADV_INT", Level: 2},
		{Family: "ADV_TDS", Level: 4},
		{Family: "AGD_OPE", Level: 1},
		{Family: "AGD_PRE", Level: 1},
		{Family: "ALC_CMC", Level: 4},
		{Family: "ALC_CMS", Level: 5},
		{Family: "ALC_DEL", Level: 1},
		{Family: "ALC_DVS", Level: 1},
		{Family: "ALC_LCD", Level: 1},
		{Family: "ALC_TAT", Level: 2},
		{Family: "ASE_CCL", Level: 1},
		{Family: "ASE_ECD", Level: 1},
		{Family: "ASE_INT", Level: 1},
		{Family: "ASE_OBJ", Level: 2},
		{Family: "ASE_REQ", Level: 2},
		{Family: "ASE_SPD", Level: 1},
		{Family: "ASE_TSS", Level: 1},
		{Family: "ATE_COV", Level: 2},
		{Family: "ATE_DPT", Level: 3},
		{Family: "ATE_FUN", Level: 1},
		{Family: "ATE_IND", Level: 2},
		{Family: "AVA_VAN", Level: 4},
	},
	"EAL6": {
		{Family: "ADV_ARC", Level: 1},
		{Family: "ADV_FSP", Level: 5},
		{Family: "ADV_IMP", Level: 2},
		{Family: "ADV_INT", Level: 3},
		{Family: "ADV_SPM", Level: 1},
		{Family: "ADV_TDS", Level: 5},
		{Family: "AGD_OPE", Level: 1},
		{Family: "AGD_PRE", Level: 1},
		{Family: "ALC_CMC", Level: 5},
		{Family: "ALC_CMS", Level: 5},
		{Family: "ALC_DEL", Level: 1},
		{Family: "ALC_DVS", Level: 2},
		{Family: "ALC_LCD", Level: 1},
		{Family: "ALC_TAT", Level: 3},
		{Family: "ASE_CCL", Level: 1},
		{Family: "ASE_ECD", Level: 1},
		{Family: "ASE_INT", Level: 1},
		{Family: "ASE_OBJ", Level: 2},
		{Family: "ASE_REQ", Level: 2},
		{Family: "ASE_SPD", Level: 1},
		{Family: "ASE_TSS", Level: 1},
		{Family: "ATE_COV", Level: 3},
		{Family: "ATE_DPT", Level: 3},
		{Family: "ATE_FUN", Level: 2},
		{Family: "ATE_IND", Level: 2},
		{Family: "AVA_VAN", Level: 5},
	},
	"EAL7": {
		{Family: "ADV_ARC", Level: 1},
		{Family: "ADV_FSP", Level: 6},
		{Family: "ADV_IMP", Level: 2},
		{Family: "ADV_INT", Level: 3},
		{Family: "ADV_SPM", Level: 1},
		{Family: "ADV_TDS", Level: 6},
		{Family: "AGD_OPE", Level: 1},
		{Family: "AGD_PRE", Level: 1},
		{Family: "ALC_CMC", Level: 5},
		{Family: "ALC_CMS", Level: 5},
		{Family: "ALC_DEL", Level: 1},
		{Family: "ALC_DVS", Level: 2},
		{Family: "ALC_LCD", Level: 2},
		{Family: "ALC_TAT", Level: 3},
		{Family: "ASE_CCL", Level: 1},
		{Family: "ASE_ECD", Level: 1},
		{Family: "ASE_INT", Level: 1},
		{Family: "ASE_OBJ", Level: 2},
		{Family: "ASE_REQ", Level: 2},
		{Family: "ASE_SPD", Level: 1},
		{Family: "ASE_TSS", Level: 1},
		{Family: "ATE_COV", Level: 3},
		{Family: "ATE_DPT", Level: 4},
		{Family: "ATE_FUN", Level: 2},
		{Family: "ATE_IND", Level: 3},
		{Family: "AVA_VAN", Level: 5},
	},
}
