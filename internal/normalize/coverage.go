package normalize

import (
	"strings"
	"unicode"

	"github.com/tcdsagency/renewals/internal/model"
)

// coverageAliases maps a squashed key (lowercase letters and digits only) to
// the canonical coverage code. Keys cover AL3 codes, carrier print labels and
// AMS field names.
var coverageAliases = map[string]model.CoverageCode{
	"bi":                              model.CoverageBodilyInjury,
	"bil":                             model.CoverageBodilyInjury,
	"bodilyinjury":                    model.CoverageBodilyInjury,
	"bodilyinjuryliability":           model.CoverageBodilyInjury,
	"liabilitybodilyinjury":           model.CoverageBodilyInjury,
	"pd":                              model.CoveragePropertyDamage,
	"pdl":                             model.CoveragePropertyDamage,
	"propertydamage":                  model.CoveragePropertyDamage,
	"propertydamageliability":         model.CoveragePropertyDamage,
	"liabilitypropertydamage":         model.CoveragePropertyDamage,
	"csl":                             model.CoverageCombinedSingleLimit,
	"combinedsinglelimit":             model.CoverageCombinedSingleLimit,
	"singlelimitliability":            model.CoverageCombinedSingleLimit,
	"um":                              model.CoverageUninsuredMotorist,
	"umbi":                            model.CoverageUninsuredMotorist,
	"umuim":                           model.CoverageUninsuredMotorist,
	"uninsuredmotorist":               model.CoverageUninsuredMotorist,
	"uninsuredmotorists":              model.CoverageUninsuredMotorist,
	"uninsuredmotoristbodilyinjury":   model.CoverageUninsuredMotorist,
	"uninsuredunderinsuredmotorist":   model.CoverageUninsuredMotorist,
	"uim":                             model.CoverageUnderinsuredMotorist,
	"uimbi":                           model.CoverageUnderinsuredMotorist,
	"undum":                           model.CoverageUnderinsuredMotorist,
	"underinsuredmotorist":            model.CoverageUnderinsuredMotorist,
	"underinsuredmotorists":           model.CoverageUnderinsuredMotorist,
	"umpd":                            model.CoverageUMPropertyDamage,
	"uninsuredmotoristpd":             model.CoverageUMPropertyDamage,
	"uninsuredmotoristpropertydamage": model.CoverageUMPropertyDamage,
	"med":                             model.CoverageMedicalPayments,
	"medpay":                          model.CoverageMedicalPayments,
	"medpm":                           model.CoverageMedicalPayments,
	"medicalpayments":                 model.CoverageMedicalPayments,
	"pip":                             model.CoveragePIP,
	"personalinjuryprotection":        model.CoveragePIP,
	"comp":                            model.CoverageComprehensive,
	"cmp":                             model.CoverageComprehensive,
	"otc":                             model.CoverageComprehensive,
	"comprehensive":                   model.CoverageComprehensive,
	"otherthancollision":              model.CoverageComprehensive,
	"coll":                            model.CoverageCollision,
	"col":                             model.CoverageCollision,
	"collision":                       model.CoverageCollision,
	"rental":                          model.CoverageRental,
	"rreim":                           model.CoverageRental,
	"rentalreimbursement":             model.CoverageRental,
	"transportationexpense":           model.CoverageRental,
	"tl":                              model.CoverageTowing,
	"towing":                          model.CoverageTowing,
	"towingandlabor":                  model.CoverageTowing,
	"roadside":                        model.CoverageTowing,
	"roadsideassistance":              model.CoverageTowing,
	"dwell":                           model.CoverageDwelling,
	"dwelling":                        model.CoverageDwelling,
	"cova":                            model.CoverageDwelling,
	"coveragea":                       model.CoverageDwelling,
	"coverageadwelling":               model.CoverageDwelling,
	"os":                              model.CoverageOtherStructures,
	"covb":                            model.CoverageOtherStructures,
	"coverageb":                       model.CoverageOtherStructures,
	"otherstructures":                 model.CoverageOtherStructures,
	"coveragebotherstructures":        model.CoverageOtherStructures,
	"pp":                              model.CoveragePersonalProperty,
	"covc":                            model.CoveragePersonalProperty,
	"coveragec":                       model.CoveragePersonalProperty,
	"contents":                        model.CoveragePersonalProperty,
	"personalproperty":                model.CoveragePersonalProperty,
	"coveragecpersonalproperty":       model.CoveragePersonalProperty,
	"lou":                             model.CoverageLossOfUse,
	"ale":                             model.CoverageLossOfUse,
	"covd":                            model.CoverageLossOfUse,
	"coveraged":                       model.CoverageLossOfUse,
	"lossofuse":                       model.CoverageLossOfUse,
	"additionallivingexpense":         model.CoverageLossOfUse,
	"coveragedlossofuse":              model.CoverageLossOfUse,
	"pl":                              model.CoveragePersonalLiability,
	"cove":                            model.CoveragePersonalLiability,
	"coveragee":                       model.CoveragePersonalLiability,
	"personalliability":               model.CoveragePersonalLiability,
	"coverageepersonalliability":      model.CoveragePersonalLiability,
	"covf":                            model.CoverageMedicalToOthers,
	"coveragef":                       model.CoverageMedicalToOthers,
	"medicalpaymentstoothers":         model.CoverageMedicalToOthers,
	"medpaytoothers":                  model.CoverageMedicalToOthers,
	"coveragefmedicalpayments":        model.CoverageMedicalToOthers,
	"wh":                              model.CoverageWindHail,
	"windhail":                        model.CoverageWindHail,
	"windstorm":                       model.CoverageWindHail,
	"windstormhail":                   model.CoverageWindHail,
	"windhaildeductible":              model.CoverageWindHail,
	"aop":                             model.CoverageAllPerils,
	"allperils":                       model.CoverageAllPerils,
	"allotherperils":                  model.CoverageAllPerils,
	"allperilsdeductible":             model.CoverageAllPerils,
	"wbu":                             model.CoverageWaterBackup,
	"waterbackup":                     model.CoverageWaterBackup,
	"sewerbackup":                     model.CoverageWaterBackup,
	"waterbackupandsump":              model.CoverageWaterBackup,
}

// CoverageCode maps any vendor spelling of a coverage type onto the
// canonical vocabulary. Unknown types fall back to a snake_case key so
// they still diff consistently.
func CoverageCode(raw string) model.CoverageCode {
	if code, ok := coverageAliases[squash(raw)]; ok {
		return code
	}
	return model.CoverageCode(snake(raw))
}

// KnownCoverage reports whether raw is in the alias table.
func KnownCoverage(raw string) bool {
	_, ok := coverageAliases[squash(raw)]
	return ok
}

func squash(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func snake(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, "_")
}
