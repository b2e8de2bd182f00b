package worker

// TemplateVarsForTest exposes templateVars.
var TemplateVarsForTest = templateVars

// UnifiedDiffForTest exposes unifiedDiff.
var UnifiedDiffForTest = unifiedDiff

// ProcessPackageFileForTest exposes processPackageFile.
var ProcessPackageFileForTest = processPackageFile
