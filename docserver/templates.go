package docserver

import "github.com/flosch/pongo2/v6"

// printTpl is the interactive preview: a print-styled page with a download
// button that captures the page client side.
var printTpl = pongo2.Must(pongo2.FromString(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Medical Letter - {{ patient_name|default:"Patient" }}</title>
<script src="https://cdnjs.cloudflare.com/ajax/libs/jspdf/2.5.1/jspdf.umd.min.js"></script>
<script src="https://cdnjs.cloudflare.com/ajax/libs/html2canvas/1.4.1/html2canvas.min.js"></script>
<style>
@media print { body { margin: 0; } .no-print { display: none; } }
body { font-family: Arial, sans-serif; line-height: 1.6; color: #000; background: #f5f5f5; margin: 0; padding: 20px; }
.page { max-width: 210mm; margin: 0 auto; padding: 30mm 25mm; background: white; box-shadow: 0 0 10px rgba(0,0,0,0.1); }
.header { text-align: center; margin-bottom: 40px; }
.logo { width: 60px; height: 60px; margin: 0 auto 20px; display: block; }
.doctor-name { font-size: 18px; font-weight: bold; margin-bottom: 8px; }
.credentials { font-size: 13px; margin-bottom: 5px; }
.contact { font-size: 12px; color: #333; margin-bottom: 3px; }
.date-section { margin: 40px 0 25px 0; font-size: 14px; }
.recipient { margin-bottom: 25px; font-size: 14px; line-height: 1.5; }
.letter-content { font-size: 14px; line-height: 1.8; margin-bottom: 30px; }
.signature-section { margin-top: 60px; }
.doctor-footer { font-size: 13px; line-height: 1.5; }
.doctor-footer .name { font-weight: bold; margin-bottom: 5px; }
.download-button { position: fixed; top: 20px; right: 20px; background: #4CAF50; color: white; border: none; padding: 12px 24px; border-radius: 5px; cursor: pointer; font-size: 16px; }
.download-button:disabled { background: #cccccc; cursor: not-allowed; }
</style>
</head>
<body>
<button class="download-button no-print" onclick="downloadPDF()" id="downloadBtn">Download PDF</button>
<div class="page" id="letterContent">
  <div class="header">
    {% if logo %}<img src="{{ logo }}" alt="Logo" class="logo" />{% endif %}
    <div class="doctor-name">{{ letterhead.Name }}</div>
    <div class="credentials">{{ letterhead.Qualifications }}</div>
    {% for c in contact %}<div class="contact">{{ c }}</div>
    {% endfor %}
  </div>
  <div class="date-section">{{ date }}</div>
  <div class="recipient">
    Ms {{ patient_name|default:"Patient Name" }}<br/>
    {% if patient_email %}{{ patient_email }}<br/>{% endif %}
    {% for l in address %}{{ l }}{% if not forloop.Last %}<br/>{% endif %}{% endfor %}
  </div>
  <div class="letter-content">{{ content|safe }}</div>
  <div class="signature-section">
    <div class="doctor-footer">
      {% for s in letterhead.Signature %}{% if forloop.First %}<div class="name">{{ s }}</div>{% else %}<div>{{ s }}</div>{% endif %}
      {% endfor %}
    </div>
  </div>
</div>
<script>
async function downloadPDF() {
  const button = document.getElementById('downloadBtn');
  button.disabled = true;
  try {
    const { jsPDF } = window.jspdf;
    const canvas = await html2canvas(document.getElementById('letterContent'), { scale: 2, useCORS: true, logging: false, backgroundColor: '#ffffff' });
    const imgWidth = 210, pageHeight = 297;
    const imgHeight = (canvas.height * imgWidth) / canvas.width;
    const pdf = new jsPDF('p', 'mm', 'a4');
    const imgData = canvas.toDataURL('image/png');
    let heightLeft = imgHeight, position = 0;
    pdf.addImage(imgData, 'PNG', 0, position, imgWidth, imgHeight);
    heightLeft -= pageHeight;
    while (heightLeft >= 0) {
      position = heightLeft - imgHeight;
      pdf.addPage();
      pdf.addImage(imgData, 'PNG', 0, position, imgWidth, imgHeight);
      heightLeft -= pageHeight;
    }
    pdf.save('{{ filename }}');
  } catch (error) {
    alert('Error generating PDF. Please try again.');
  }
  button.disabled = false;
}
</script>
</body>
</html>
`))

// simpleTpl is the plain document handed to downstream converters.
var simpleTpl = pongo2.Must(pongo2.FromString(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<style>
body { font-family: Arial, sans-serif; line-height: 1.6; margin: 40px; color: #333; }
.header { text-align: center; margin-bottom: 40px; padding-bottom: 20px; border-bottom: 2px solid #ddd; }
.logo { width: 60px; height: 60px; margin-bottom: 10px; }
.doctor-name { font-size: 20px; font-weight: bold; margin: 10px 0; }
.credentials { font-size: 14px; color: #666; }
.date { margin: 30px 0; }
.content { margin: 30px 0; line-height: 1.8; }
.signature { margin-top: 60px; }
</style>
</head>
<body>
<div class="header">
  {% if logo %}<img src="{{ logo }}" alt="Logo" class="logo" />{% endif %}
  <div class="doctor-name">{{ letterhead.Name }}</div>
  <div class="credentials">{{ letterhead.Qualifications }}</div>
  <div>{{ letterhead.Contact }}</div>
</div>
<div class="date">{{ date }}</div>
<div>
  Ms {{ patient_name|default:"Patient" }}<br/>
  {{ patient_email }}<br/>
  {{ patient_address|default:"London" }}
</div>
<div class="content">{{ content|safe }}</div>
<div class="signature">
  <p>{{ letterhead.Closing }}</p>
  <br/><br/>
  <p>{% for s in letterhead.Signature %}{% if forloop.First %}<strong>{{ s }}</strong>{% else %}{{ s }}{% endif %}{% if not forloop.Last %}<br/>{% endif %}{% endfor %}</p>
</div>
</body>
</html>
`))
